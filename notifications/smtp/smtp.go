// Package smtp implements the notifications.NotificationService interface on
// top of a plain SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"

	"github.com/cancelready/backend/notifications"
)

// mimeBoundary separates the plain text and HTML parts of every email.
const mimeBoundary = "----=_Part_0_cancelready.boundary"

// Config represents the configuration for the SMTP email service. TestAPIPort
// is the port of the MailHog API used by FindEmail in tests.
type Config struct {
	FromName     string
	FromAddress  string
	SMTPUsername string
	SMTPPassword string
	SMTPServer   string
	SMTPPort     int
	TestAPIPort  int
}

// Email sends notifications as multipart emails through an SMTP server.
type Email struct {
	config *Config
	auth   smtp.Auth
}

// New initializes the service with a *Config. The SMTP auth is only set when
// both username and password are provided.
func (se *Email) New(rawConfig any) error {
	// parse configuration
	config, ok := rawConfig.(*Config)
	if !ok {
		return fmt.Errorf("invalid SMTP configuration")
	}
	if config.SMTPServer == "" || config.SMTPPort == 0 {
		return fmt.Errorf("SMTP server and port are required")
	}
	if _, err := mail.ParseAddress(config.FromAddress); err != nil {
		return fmt.Errorf("could not parse from email: %v", err)
	}
	se.config = config
	if se.config.SMTPUsername != "" && se.config.SMTPPassword != "" {
		se.auth = smtp.PlainAuth("", se.config.SMTPUsername, se.config.SMTPPassword, se.config.SMTPServer)
	}
	return nil
}

// SendNotification sends the notification to its recipient. It returns when
// the server accepted the message or the context is done.
func (se *Email) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	body, err := se.composeBody(notification)
	if err != nil {
		return fmt.Errorf("could not compose email body: %v", err)
	}
	server := fmt.Sprintf("%s:%d", se.config.SMTPServer, se.config.SMTPPort)
	errCh := make(chan error, 1)
	go func() {
		err := smtp.SendMail(server, se.auth, se.config.FromAddress, []string{notification.ToAddress}, body)
		errCh <- err
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// composeBody renders the raw message: headers plus a multipart/alternative
// body with the plain text part first.
func (se *Email) composeBody(notification *notifications.Notification) ([]byte, error) {
	// parse 'to' email
	to, err := mail.ParseAddress(notification.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("could not parse to email: %v", err)
	}
	var headers bytes.Buffer
	fromAddr := mail.Address{Name: se.config.FromName, Address: se.config.FromAddress}
	headers.WriteString(fmt.Sprintf("From: %s\r\n", fromAddr.String()))
	headers.WriteString(fmt.Sprintf("To: %s\r\n", to.String()))
	if notification.ReplyTo != "" {
		replyToAddress, err := mail.ParseAddress(notification.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("could not parse reply-to email: %v", err)
		}
		headers.WriteString(fmt.Sprintf("Reply-To: %s\r\n", replyToAddress.String()))
	}
	headers.WriteString(fmt.Sprintf("Subject: %s\r\n", notification.Subject))
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", mimeBoundary))
	headers.WriteString("\r\n")
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.SetBoundary(mimeBoundary); err != nil {
		return nil, fmt.Errorf("could not set boundary: %v", err)
	}
	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=\"UTF-8\""},
		"Content-Transfer-Encoding": {"7bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create plain text part: %v", err)
	}
	if _, err := textPart.Write([]byte(notification.PlainBody)); err != nil {
		return nil, fmt.Errorf("could not write plain text part: %v", err)
	}
	if notification.Body == "" {
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("could not close writer: %v", err)
		}
		return append(headers.Bytes(), body.Bytes()...), nil
	}
	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=\"UTF-8\""},
		"Content-Transfer-Encoding": {"7bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create HTML part: %v", err)
	}
	if _, err := htmlPart.Write([]byte(notification.Body)); err != nil {
		return nil, fmt.Errorf("could not write HTML part: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %v", err)
	}
	return append(headers.Bytes(), body.Bytes()...), nil
}
