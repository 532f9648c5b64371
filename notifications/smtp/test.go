package smtp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// MailHog API endpoints, used only by tests.
const (
	searchInboxTestEndpoint = "http://%s:%d/api/v2/search?kind=to&query=%s"
	clearInboxTestEndpoint  = "http://%s:%d/api/v1/messages"
)

// FindEmail looks for an email sent to the address provided in the MailHog
// API configured with TestAPIPort. It returns the raw body of the first match
// and empties the inbox, or io.EOF when nothing was found.
func (se *Email) FindEmail(ctx context.Context, to string) (string, error) {
	searchEndpoint := fmt.Sprintf(searchInboxTestEndpoint,
		se.config.SMTPServer, se.config.TestAPIPort, url.QueryEscape(to))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	//revive:disable:nested-structs
	var mailResults struct {
		Items []struct {
			Content struct {
				Body string `json:"Body"`
			} `json:"Content"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mailResults); err != nil {
		return "", fmt.Errorf("could not decode response: %v", err)
	}
	if len(mailResults.Items) == 0 {
		return "", io.EOF
	}
	return mailResults.Items[0].Content.Body, se.clear(ctx)
}

func (se *Email) clear(ctx context.Context) error {
	clearEndpoint := fmt.Sprintf(clearInboxTestEndpoint, se.config.SMTPServer, se.config.TestAPIPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, clearEndpoint, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
