package stripe

import "time"

// DefaultTimeout bounds every call to the Stripe API.
const DefaultTimeout = 15 * time.Second

// Config holds the Stripe adapter configuration. The API keys are not part of
// it: every vendor brings its own sealed key.
type Config struct {
	// APIURL overrides the Stripe API base URL. Empty means the default
	// https://api.stripe.com endpoint.
	APIURL string `yaml:"api_url" json:"api_url"`
	// Timeout bounds the cancellation call. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}
