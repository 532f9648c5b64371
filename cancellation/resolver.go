package cancellation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/processor"
)

var (
	errPlaintextCredential = fmt.Errorf("%w: credential is not encrypted at rest", ErrConfiguration)
	errLegacyCredential    = fmt.Errorf("%w: credential uses the legacy encryption format", ErrConfiguration)
	errUnreadableLegacy    = fmt.Errorf("%w: legacy credential has an unexpected format", ErrConfiguration)
)

// VendorStore is the read side of the vendors collection.
type VendorStore interface {
	Vendor(vendorKey string) (*db.Vendor, error)
}

// Resolver fetches vendor documents and normalizes them into a
// processor.VendorConfig. It is the only place that knows about the legacy
// field names.
type Resolver struct {
	store VendorStore
}

// NewResolver returns a resolver reading from the store provided.
func NewResolver(store VendorStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the normalized configuration of the vendor. Unknown keys
// fail with ErrVendorNotFound and store errors with ErrPersistence. When the
// vendor exists but keeps its credential in a legacy field the configuration
// is returned together with an ErrConfiguration, so the attempt can still be
// attributed to the vendor.
func (r *Resolver) Resolve(vendorKey string) (*processor.VendorConfig, error) {
	vendor, err := r.store.Vendor(vendorKey)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	conf := Normalize(vendor)
	if !conf.Credential.IsZero() {
		return conf, nil
	}
	var legacy *db.LegacyCredential
	switch conf.Processor {
	case processor.Stripe:
		legacy = vendor.Legacy.StripeCredential()
	case processor.Paddle:
		legacy = vendor.Legacy.PaddleCredential()
	}
	switch {
	case legacy.IsZero():
		return conf, nil
	case legacy.Unreadable != nil:
		return conf, errUnreadableLegacy
	case legacy.Plain != "":
		return conf, errPlaintextCredential
	default:
		return conf, errLegacyCredential
	}
}

// Normalize collapses the canonical and legacy fields of a vendor document
// into a VendorConfig. Canonical fields win. The processor name is lower
// cased; an empty processor is kept empty.
func Normalize(vendor *db.Vendor) *processor.VendorConfig {
	conf := &processor.VendorConfig{
		VendorKey:      vendor.VendorKey,
		CompanyName:    firstNonEmpty(vendor.CompanyName, vendor.Legacy.CompanyName),
		Processor:      vendor.Processor,
		Credential:     vendor.Credential,
		PaddleVendorID: firstNonEmpty(vendor.PaddleVendorID, vendor.Legacy.PaddleVendorID),
	}
	if conf.Processor == "" {
		conf.Processor = processor.Type(vendor.Legacy.PaymentProcessor)
	}
	conf.Processor = processor.Type(strings.ToLower(strings.TrimSpace(string(conf.Processor))))
	return conf
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
