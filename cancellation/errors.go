package cancellation

import "fmt"

// The errors returned by Service.Cancel wrap one of these. Callers use
// errors.Is to map them onto a response.
var (
	// ErrValidation is returned when the request is malformed. Nothing is
	// recorded.
	ErrValidation = fmt.Errorf("invalid cancellation request")
	// ErrMissingIdentifiers is the ErrValidation raised when vendorKey or
	// userId are absent.
	ErrMissingIdentifiers = fmt.Errorf("%w: vendorKey & userId required", ErrValidation)
	// ErrVendorNotFound is returned for unknown vendor keys. Nothing is
	// recorded.
	ErrVendorNotFound = fmt.Errorf("vendor not found")
	// ErrConfiguration is returned when the vendor processor configuration
	// cannot be used. The attempt is recorded as failed.
	ErrConfiguration = fmt.Errorf("processor configuration error")
	// ErrUnsupportedProcessor is returned when the vendor has no usable
	// processor. The attempt is recorded as failed.
	ErrUnsupportedProcessor = fmt.Errorf("unsupported payment processor")
	// ErrUpstream is returned when the processor rejected or failed the
	// cancellation. The attempt is recorded as failed.
	ErrUpstream = fmt.Errorf("payment processor error")
	// ErrCredentialUnavailable is returned when the sealed credential of the
	// vendor could not be opened with the server secret. The attempt is
	// recorded as failed.
	ErrCredentialUnavailable = fmt.Errorf("processor credential unavailable")
	// ErrPersistence is returned when the store failed. When it is returned
	// there is no record of the attempt.
	ErrPersistence = fmt.Errorf("cancellation could not be recorded")
)
