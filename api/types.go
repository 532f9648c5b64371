package api

import "github.com/cancelready/backend/processor"

// CancelRequest is the body of POST /cancel.
type CancelRequest struct {
	VendorKey string `json:"vendorKey"`
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Feedback  string `json:"feedback,omitempty"`
}

// CancelResponse is returned by POST /cancel when the subscription was
// cancelled.
type CancelResponse struct {
	Status             string         `json:"status"`
	Processor          processor.Type `json:"processor"`
	CancellationID     string         `json:"cancellationId"`
	Message            string         `json:"message"`
	ProcessorReference string         `json:"processorReference,omitempty"`
	// StripeSubscriptionID repeats the processor reference for Stripe vendors,
	// the field name read by older embed scripts.
	StripeSubscriptionID string `json:"stripeSubscriptionId,omitempty"`
}

// VendorResponse is returned by GET /vendors/{vendorKey}. It never contains
// credentials.
type VendorResponse struct {
	VendorKey   string         `json:"vendorKey"`
	CompanyName string         `json:"companyName"`
	Processor   processor.Type `json:"processor"`
}
