package paddle

import "time"

const (
	// LiveAPIURL is the production Paddle Billing API.
	LiveAPIURL = "https://api.paddle.com"
	// SandboxAPIURL is the Paddle Billing sandbox API.
	SandboxAPIURL = "https://sandbox-api.paddle.com"
	// DefaultTimeout bounds every call to the Paddle API.
	DefaultTimeout = 15 * time.Second
)

// Config holds the Paddle adapter configuration.
type Config struct {
	// APIURL is the Paddle API base URL. Empty means LiveAPIURL.
	APIURL string `yaml:"api_url" json:"api_url"`
	// Timeout bounds the cancellation call. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}
