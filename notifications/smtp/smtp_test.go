package smtp

import (
	"strings"
	"testing"

	"github.com/cancelready/backend/notifications"
	qt "github.com/frankban/quicktest"
)

func TestNew(t *testing.T) {
	c := qt.New(t)
	c.Assert(new(Email).New(&Config{SMTPServer: "localhost", SMTPPort: 25}), qt.ErrorMatches, "could not parse from email.*")
	c.Assert(new(Email).New(&Config{FromAddress: "support@cancelready.test"}), qt.ErrorMatches, "SMTP server and port are required")
	c.Assert(new(Email).New("not a config"), qt.ErrorMatches, "invalid SMTP configuration")

	se := new(Email)
	c.Assert(se.New(&Config{
		FromAddress: "support@cancelready.test",
		SMTPServer:  "localhost",
		SMTPPort:    25,
	}), qt.IsNil)
	c.Assert(se.auth, qt.IsNil)
}

func TestComposeBody(t *testing.T) {
	c := qt.New(t)
	se := new(Email)
	c.Assert(se.New(&Config{
		FromName:    "CancelReady",
		FromAddress: "support@cancelready.test",
		SMTPServer:  "localhost",
		SMTPPort:    25,
	}), qt.IsNil)

	raw, err := se.composeBody(&notifications.Notification{
		ToAddress: "user@example.com",
		ReplyTo:   "billing@vendor.test",
		Subject:   "Subscription cancelled",
		Body:      "<p>html body</p>",
		PlainBody: "plain body",
	})
	c.Assert(err, qt.IsNil)
	msg := string(raw)
	c.Assert(msg, qt.Contains, "From: \"CancelReady\" <support@cancelready.test>\r\n")
	c.Assert(msg, qt.Contains, "To: <user@example.com>\r\n")
	c.Assert(msg, qt.Contains, "Reply-To: <billing@vendor.test>\r\n")
	c.Assert(msg, qt.Contains, "Subject: Subscription cancelled\r\n")
	c.Assert(msg, qt.Contains, "plain body")
	c.Assert(msg, qt.Contains, "<p>html body</p>")
	c.Assert(strings.Index(msg, "plain body") < strings.Index(msg, "<p>html body</p>"), qt.IsTrue)

	plainOnly, err := se.composeBody(&notifications.Notification{
		ToAddress: "user@example.com",
		PlainBody: "only text",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(plainOnly), qt.Not(qt.Contains), "text/html")

	_, err = se.composeBody(&notifications.Notification{ToAddress: "not an email"})
	c.Assert(err, qt.ErrorMatches, "could not parse to email.*")
}
