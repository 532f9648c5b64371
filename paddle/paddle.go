// Package paddle implements the Paddle Billing cancellation adapter with the
// official Paddle Go SDK. Every vendor uses its own API key, so a client is
// built per call on top of a shared HTTP client.
package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v3"
	"github.com/PaddleHQ/paddle-go-sdk/v3/pkg/paddleerr"
	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"github.com/sony/gobreaker/v2"
	"go.vocdoni.io/dvote/log"
)

// canceledStatus is the subscription status Paddle returns after an immediate
// cancellation.
const canceledStatus = "canceled"

// maxErrorBody bounds the copy of a non 2xx answer kept for error messages.
const maxErrorBody = 64 << 10

// exchangeKey is the context key of the *exchange of one call.
type exchangeKey struct{}

// exchange holds what the transport saw of the Paddle answer.
type exchange struct {
	status int
	body   []byte
}

// statusTransport records the HTTP status of the answer, and the body of a
// non 2xx one, in the exchange carried by the request context.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	ex, ok := r.Context().Value(exchangeKey{}).(*exchange)
	if !ok || resp == nil {
		return resp, err
	}
	ex.status = resp.StatusCode
	if !success(resp.StatusCode) && resp.Body != nil {
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		if rerr != nil {
			return nil, rerr
		}
		ex.body = body
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, err
}

func success(status int) bool {
	return status >= 200 && status <= 299
}

// answerError is a non 2xx answer from Paddle.
type answerError struct {
	status int
	body   []byte
	err    error
}

func (e *answerError) Error() string {
	return fmt.Sprintf("paddle answered with status %d: %v", e.status, e.err)
}

func (e *answerError) Unwrap() error { return e.err }

// isOutage reports whether the error means Paddle is unreachable or
// unhealthy: transport errors, 5xx and 429 answers.
func isOutage(err error) bool {
	var ae *answerError
	if errors.As(err, &ae) {
		return ae.status >= http.StatusInternalServerError || ae.status == http.StatusTooManyRequests
	}
	return true
}

// Adapter cancels Paddle subscriptions with immediate effect.
type Adapter struct {
	box        *secrets.Box
	apiURL     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*paddlesdk.Subscription]
}

// New creates the Paddle adapter. The box is used to open the vendor tokens at
// call time.
func New(conf *Config, box *secrets.Box) *Adapter {
	if conf == nil {
		conf = &Config{}
	}
	apiURL := strings.TrimSuffix(conf.APIURL, "/")
	if apiURL == "" {
		apiURL = LiveAPIURL
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		box:     box,
		apiURL:  apiURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &statusTransport{next: http.DefaultTransport},
		},
		breaker: processor.NewBreaker[*paddlesdk.Subscription]("paddle", isOutage),
	}
}

// Type implements processor.Adapter.
func (*Adapter) Type() processor.Type { return processor.Paddle }

// Cancel implements processor.Adapter. The subscription identifier must be the
// Paddle subscription id (sub_...).
func (a *Adapter) Cancel(ctx context.Context, req *processor.Request) *processor.Outcome {
	metadata := map[string]any{"paddleVendorId": req.Vendor.PaddleVendorID}
	token, err := a.box.Open(req.Vendor.VendorKey, req.Vendor.Credential)
	token = strings.TrimSpace(token)
	if err == nil && token == "" {
		err = secrets.ErrNotSealed
	}
	if err != nil {
		log.Errorw(err, fmt.Sprintf("could not open paddle token for vendor %s", req.Vendor.VendorKey))
		return &processor.Outcome{
			Status:          processor.StatusFailed,
			Error:           "Failed to decrypt Paddle API key.",
			CredentialError: true,
			Metadata:        metadata,
		}
	}
	client, err := paddlesdk.New(token,
		paddlesdk.WithBaseURL(a.apiURL),
		paddlesdk.WithClient(a.httpClient))
	if err != nil {
		outcome := processor.Failed("could not create the Paddle client: %v", err)
		outcome.Metadata = metadata
		return outcome
	}

	ex := &exchange{}
	callCtx, cancel := context.WithTimeout(context.WithValue(ctx, exchangeKey{}, ex), a.timeout)
	defer cancel()

	log.Infow("cancelling paddle subscription",
		"vendorKey", req.Vendor.VendorKey,
		"subscription", req.SubscriptionID,
		"token", internal.Mask(token))
	sub, err := a.breaker.Execute(func() (*paddlesdk.Subscription, error) {
		sub, err := client.CancelSubscription(callCtx, &paddlesdk.CancelSubscriptionRequest{
			SubscriptionID: req.SubscriptionID,
			EffectiveFrom:  paddlesdk.PtrTo(paddlesdk.EffectiveFromImmediately),
		})
		if err != nil && ex.status != 0 && !success(ex.status) {
			err = &answerError{status: ex.status, body: ex.body, err: err}
		}
		return sub, processor.CallerGone(ctx, err)
	})
	if ex.status != 0 {
		metadata["upstreamStatus"] = ex.status
	}
	var ae *answerError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Warnw("paddle circuit breaker rejected the call",
			"vendorKey", req.Vendor.VendorKey, "subscription", req.SubscriptionID, "error", err)
		outcome := processor.Failed("Paddle is temporarily unavailable: %v", err)
		outcome.Metadata = metadata
		return outcome
	case errors.As(err, &ae):
		return rejected(req, ae, metadata)
	case err != nil:
		log.Warnw("network error during paddle call",
			"vendorKey", req.Vendor.VendorKey, "subscription", req.SubscriptionID, "error", err)
		return &processor.Outcome{
			Status:   processor.StatusFailed,
			Error:    err.Error(),
			Metadata: metadata,
		}
	}
	return accepted(req, sub, metadata)
}

// errorBody is the error envelope of a Paddle answer. message is not part of
// the documented envelope but some gateways in front of the API send it.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	} `json:"error"`
}

// rejected converts a non 2xx answer into a failed outcome carrying the
// upstream detail verbatim, else the upstream message, else the status.
func rejected(req *processor.Request, ae *answerError, metadata map[string]any) *processor.Outcome {
	var code, detail, message string
	var body errorBody
	if len(ae.body) > 0 && json.Unmarshal(ae.body, &body) == nil {
		code, detail, message = body.Error.Code, body.Error.Detail, body.Error.Message
	}
	var apiErr *paddleerr.Error
	if errors.As(ae.err, &apiErr) {
		code = firstNonEmpty(apiErr.Code, code)
		detail = firstNonEmpty(apiErr.Detail, detail)
	}
	if code != "" {
		metadata["upstreamCode"] = code
	}
	msg := firstNonEmpty(detail, message, fmt.Sprintf("Paddle API request failed with status %d", ae.status))
	log.Warnw("paddle cancellation failed",
		"vendorKey", req.Vendor.VendorKey,
		"subscription", req.SubscriptionID,
		"status", ae.status,
		"error", msg)
	return &processor.Outcome{
		Status:   processor.StatusFailed,
		Error:    msg,
		Metadata: metadata,
	}
}

// accepted converts a 2xx answer into a completed outcome. A subscription
// that is not reported as canceled is still a success.
func accepted(req *processor.Request, sub *paddlesdk.Subscription, metadata map[string]any) *processor.Outcome {
	outcome := &processor.Outcome{
		Status:             processor.StatusCompleted,
		ProcessorReference: req.SubscriptionID,
		Metadata:           metadata,
	}
	var status string
	if sub != nil {
		status = string(sub.Status)
		if sub.ID != "" {
			outcome.ProcessorReference = sub.ID
		}
	}
	metadata["paddleStatus"] = status
	if status != canceledStatus {
		// Paddle accepted the request but did not report the subscription as
		// canceled. Kept as a success; flagged for monitoring.
		metadata["softSuccess"] = true
		log.Warnw("paddle subscription not canceled after immediate cancel request",
			"vendorKey", req.Vendor.VendorKey,
			"subscription", req.SubscriptionID,
			"status", status)
	}
	return outcome
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
