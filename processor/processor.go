// Package processor defines the normalized vendor configuration consumed by
// the payment processor adapters, the adapter contract and the dispatcher
// that picks the adapter for a vendor.
package processor

import (
	"context"
	"fmt"

	"github.com/cancelready/backend/secrets"
)

// Type identifies a payment processor.
type Type string

const (
	Stripe Type = "stripe"
	Paddle Type = "paddle"
	None   Type = "none"
	// Unknown is recorded when a vendor has no processor configured at all.
	Unknown Type = "unknown"
)

// String returns the processor name.
func (t Type) String() string { return string(t) }

// Supported reports whether an adapter exists for the processor type.
func (t Type) Supported() bool {
	return t == Stripe || t == Paddle
}

// Status is the terminal state of a cancellation attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// VendorConfig is the single normalized shape of a vendor configuration. It is
// produced once, by the vendor resolver, from whatever the stored document
// looks like. The credential stays sealed until an adapter opens it.
type VendorConfig struct {
	VendorKey      string
	CompanyName    string
	Processor      Type
	Credential     *secrets.Sealed
	PaddleVendorID string
}

// Request is the input of an adapter call.
type Request struct {
	Vendor *VendorConfig
	// SubscriptionID is the processor's own subscription identifier, supplied
	// by the caller as userId.
	SubscriptionID string
	// Reason and Feedback are the end user answers, forwarded to processors
	// that can store them with the cancellation.
	Reason   string
	Feedback string
}

// Outcome is the normalized result of an adapter call.
type Outcome struct {
	Status             Status
	ProcessorReference string
	// Error holds the upstream error message, verbatim when the processor
	// provided one.
	Error string
	// CredentialError is set when the sealed credential could not be opened.
	// In that case no upstream call was attempted.
	CredentialError bool
	Metadata        map[string]any
}

// Completed reports whether the outcome is a successful cancellation.
func (o *Outcome) Completed() bool {
	return o != nil && o.Status == StatusCompleted
}

// Failed builds a failed outcome with the error message provided.
func Failed(format string, args ...any) *Outcome {
	return &Outcome{Status: StatusFailed, Error: fmt.Sprintf(format, args...)}
}

// Adapter cancels a subscription on one payment processor. Implementations
// perform at most one upstream call and never return an error: every failure
// is translated into a failed Outcome.
type Adapter interface {
	Type() Type
	Cancel(ctx context.Context, req *Request) *Outcome
}
