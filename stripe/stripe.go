// Package stripe implements the Stripe cancellation adapter. Every vendor uses
// its own API key, so the adapter builds a per-call client instead of relying
// on the package-global key of the Stripe SDK.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"github.com/sony/gobreaker/v2"
	stripeapi "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
	"go.vocdoni.io/dvote/log"
)

// maxCommentLength is the longest cancellation comment Stripe accepts.
const maxCommentLength = 500

// Adapter cancels Stripe subscriptions immediately, without proration.
type Adapter struct {
	box      *secrets.Box
	backends *stripeapi.Backends
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[*stripeapi.Subscription]
}

// New creates the Stripe adapter. The box is used to open the vendor keys at
// call time.
func New(conf *Config, box *secrets.Box) *Adapter {
	if conf == nil {
		conf = &Config{}
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	backendConf := &stripeapi.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
		// a cancellation is a single upstream call, the SDK must not retry
		MaxNetworkRetries: stripeapi.Int64(0),
	}
	if conf.APIURL != "" {
		backendConf.URL = stripeapi.String(conf.APIURL)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConf)
	return &Adapter{
		box: box,
		backends: &stripeapi.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		},
		timeout: timeout,
		breaker: processor.NewBreaker[*stripeapi.Subscription]("stripe", isOutage),
	}
}

// Type implements processor.Adapter.
func (*Adapter) Type() processor.Type { return processor.Stripe }

// Cancel implements processor.Adapter. The subscription identifier must be the
// Stripe subscription id (sub_...).
func (a *Adapter) Cancel(ctx context.Context, req *processor.Request) *processor.Outcome {
	apiKey, err := a.box.Open(req.Vendor.VendorKey, req.Vendor.Credential)
	if err == nil && strings.TrimSpace(apiKey) == "" {
		err = secrets.ErrNotSealed
	}
	if err != nil {
		log.Errorw(err, fmt.Sprintf("could not open stripe key for vendor %s", req.Vendor.VendorKey))
		return &processor.Outcome{
			Status:          processor.StatusFailed,
			Error:           "Failed to decrypt Stripe API key.",
			CredentialError: true,
		}
	}
	apiKey = strings.TrimSpace(apiKey)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := &stripeapi.SubscriptionCancelParams{
		InvoiceNow: stripeapi.Bool(false),
		Prorate:    stripeapi.Bool(false),
	}
	if comment := cancellationComment(req); comment != "" {
		params.CancellationDetails = &stripeapi.SubscriptionCancelCancellationDetailsParams{
			Comment: stripeapi.String(comment),
		}
	}
	params.Context = callCtx

	log.Infow("cancelling stripe subscription",
		"vendorKey", req.Vendor.VendorKey,
		"subscription", req.SubscriptionID,
		"key", internal.Mask(apiKey))
	sc := stripeclient.New(apiKey, a.backends)
	sub, err := a.breaker.Execute(func() (*stripeapi.Subscription, error) {
		sub, err := sc.Subscriptions.Cancel(req.SubscriptionID, params)
		return sub, processor.CallerGone(ctx, err)
	})
	if err != nil {
		return failedOutcome(req, err)
	}
	log.Infow("stripe subscription cancelled",
		"vendorKey", req.Vendor.VendorKey,
		"subscription", sub.ID,
		"status", sub.Status)
	return &processor.Outcome{
		Status:             processor.StatusCompleted,
		ProcessorReference: sub.ID,
		Metadata: map[string]any{
			"subscriptionStatus": string(sub.Status),
		},
	}
}

// failedOutcome translates a Stripe SDK or breaker error into a failed outcome
// keeping the upstream message.
func failedOutcome(req *processor.Request, err error) *processor.Outcome {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warnw("stripe circuit breaker rejected the call",
			"vendorKey", req.Vendor.VendorKey, "subscription", req.SubscriptionID, "error", err)
		return processor.Failed("Stripe is temporarily unavailable: %v", err)
	}
	outcome := &processor.Outcome{
		Status:   processor.StatusFailed,
		Metadata: map[string]any{},
	}
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		outcome.Error = stripeErr.Msg
		outcome.Metadata["upstreamStatus"] = stripeErr.HTTPStatusCode
		if stripeErr.Code != "" {
			outcome.Metadata["upstreamCode"] = string(stripeErr.Code)
		}
		if stripeErr.RequestID != "" {
			outcome.Metadata["upstreamRequestId"] = stripeErr.RequestID
		}
	}
	if outcome.Error == "" {
		outcome.Error = err.Error()
	}
	log.Warnw("stripe cancellation failed",
		"vendorKey", req.Vendor.VendorKey,
		"subscription", req.SubscriptionID,
		"error", outcome.Error)
	return outcome
}

// isOutage reports whether the error means Stripe is unreachable or
// unhealthy, as opposed to rejecting this particular request.
func isOutage(err error) bool {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

// cancellationComment joins the end user reason and feedback into the
// comment stored by Stripe with the cancellation.
func cancellationComment(req *processor.Request) string {
	parts := []string{}
	if req.Reason != "" {
		parts = append(parts, req.Reason)
	}
	if req.Feedback != "" {
		parts = append(parts, req.Feedback)
	}
	comment := strings.Join(parts, ": ")
	if len(comment) > maxCommentLength {
		comment = comment[:maxCommentLength]
	}
	return comment
}
