package processor

import (
	"fmt"
)

var (
	// ErrUnsupported is returned when the vendor processor has no adapter.
	ErrUnsupported = fmt.Errorf("Unsupported payment processor")
	// ErrMissingCredential is returned when the vendor has a processor but no
	// credential.
	ErrMissingCredential = fmt.Errorf("processor credential not configured")
	// ErrMissingPaddleVendorID is returned for paddle vendors without vendor id.
	ErrMissingPaddleVendorID = fmt.Errorf("Paddle configuration incomplete: paddle vendor id not configured")
)

// Dispatcher selects the adapter matching a vendor configuration. It performs
// no I/O.
type Dispatcher struct {
	adapters map[Type]Adapter
}

// NewDispatcher registers the adapters provided by their type.
func NewDispatcher(adapters ...Adapter) *Dispatcher {
	d := &Dispatcher{adapters: make(map[Type]Adapter, len(adapters))}
	for _, a := range adapters {
		d.adapters[a.Type()] = a
	}
	return d
}

// Dispatch returns the adapter for the vendor. It fails with ErrUnsupported
// when the processor is absent or unknown, and with one of the configuration
// errors when the vendor lacks what the processor needs.
func (d *Dispatcher) Dispatch(vendor *VendorConfig) (Adapter, error) {
	if vendor == nil || !vendor.Processor.Supported() {
		return nil, ErrUnsupported
	}
	adapter, ok := d.adapters[vendor.Processor]
	if !ok {
		return nil, ErrUnsupported
	}
	if vendor.Credential.IsZero() {
		return nil, ErrMissingCredential
	}
	if vendor.Processor == Paddle && vendor.PaddleVendorID == "" {
		return nil, ErrMissingPaddleVendorID
	}
	return adapter, nil
}
