package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"github.com/cancelready/backend/validator"
	"go.vocdoni.io/dvote/log"
)

// vendorStore is the part of *db.MongoStorage used by the vendor commands.
type vendorStore interface {
	Vendor(vendorKey string) (*db.Vendor, error)
	Vendors() ([]db.Vendor, error)
	SetVendor(vendor *db.Vendor) error
	UpdateVendor(vendor *db.Vendor) error
	SealVendorCredential(vendorKey string, proc processor.Type, sealed *secrets.Sealed) error
	CancellationsByVendor(vendorKey string, limit int64) ([]db.CancellationRecord, error)
}

// vendorInput holds the values given to vendor add and vendor update.
type vendorInput struct {
	VendorKey      string `json:"key" validate:"omitempty,vendorkey,max=128"`
	CompanyName    string `json:"company" validate:"omitempty,nonblank,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	Processor      string `json:"processor" validate:"omitempty,processor"`
	Credential     string `json:"credential" validate:"omitempty,nonblank,max=512"`
	PaddleVendorID string `json:"paddle-vendor-id" validate:"omitempty,numeric,max=32"`
}

// admin runs the vendor administration commands.
type admin struct {
	store     vendorStore
	box       *secrets.Box
	validator *validator.Validator
	out       io.Writer
}

// add onboards a new vendor and returns its generated key.
func (a *admin) add(in *vendorInput) (string, error) {
	if err := a.validator.Validate(in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return "", fmt.Errorf("company is required")
	}
	proc := processor.Type(in.Processor)
	if err := checkProcessorInput(proc, in.Credential != "", in.PaddleVendorID != ""); err != nil {
		return "", err
	}
	vendor := &db.Vendor{
		VendorKey:      internal.NewVendorKey(),
		CompanyName:    strings.TrimSpace(in.CompanyName),
		Email:          in.Email,
		Processor:      proc,
		PaddleVendorID: in.PaddleVendorID,
	}
	if in.Credential != "" {
		sealed, err := a.box.Seal(vendor.VendorKey, strings.TrimSpace(in.Credential))
		if err != nil {
			return "", err
		}
		vendor.Credential = sealed
	}
	if err := a.store.SetVendor(vendor); err != nil {
		return "", fmt.Errorf("could not store vendor: %w", err)
	}
	log.Infow("vendor onboarded", "vendorKey", vendor.VendorKey, "processor", proc,
		"credential", internal.Mask(in.Credential))
	return vendor.VendorKey, nil
}

// update changes the processor settings of an existing vendor. A new
// credential is sealed with a fresh nonce.
func (a *admin) update(in *vendorInput) error {
	if in.VendorKey == "" {
		return fmt.Errorf("key is required")
	}
	if err := a.validator.Validate(in); err != nil {
		return err
	}
	current, err := a.store.Vendor(in.VendorKey)
	if err != nil {
		return fmt.Errorf("could not get vendor %s: %w", in.VendorKey, err)
	}
	conf := cancellation.Normalize(current)
	proc := conf.Processor
	if in.Processor != "" {
		proc = processor.Type(in.Processor)
	}
	hasCredential := in.Credential != "" || (!conf.Credential.IsZero() && proc == conf.Processor)
	hasPaddleID := in.PaddleVendorID != "" || conf.PaddleVendorID != ""
	if err := checkProcessorInput(proc, hasCredential, hasPaddleID); err != nil {
		return err
	}
	update := &db.Vendor{
		VendorKey:      in.VendorKey,
		CompanyName:    strings.TrimSpace(in.CompanyName),
		Email:          in.Email,
		Processor:      processor.Type(in.Processor),
		PaddleVendorID: in.PaddleVendorID,
	}
	if err := a.store.UpdateVendor(update); err != nil {
		return fmt.Errorf("could not update vendor: %w", err)
	}
	if in.Credential == "" {
		return nil
	}
	sealed, err := a.box.Seal(in.VendorKey, strings.TrimSpace(in.Credential))
	if err != nil {
		return err
	}
	if err := a.store.SealVendorCredential(in.VendorKey, proc, sealed); err != nil {
		return fmt.Errorf("could not store credential: %w", err)
	}
	log.Infow("vendor credential updated", "vendorKey", in.VendorKey, "processor", proc,
		"credential", internal.Mask(in.Credential))
	return nil
}

// checkProcessorInput enforces the vendor configuration invariants: a
// processor other than none needs a credential, paddle needs a vendor id.
func checkProcessorInput(proc processor.Type, hasCredential, hasPaddleID bool) error {
	switch proc {
	case "":
		return fmt.Errorf("processor is required")
	case processor.None:
		return nil
	}
	if !hasCredential {
		return fmt.Errorf("credential is required for %s vendors", proc)
	}
	if proc == processor.Paddle && !hasPaddleID {
		return fmt.Errorf("paddle-vendor-id is required for paddle vendors")
	}
	return nil
}

// credentialStatus describes how the credential of a vendor is stored.
type credentialStatus string

const (
	statusSealed          credentialStatus = "sealed"
	statusUnreadable      credentialStatus = "sealed, cannot be opened with this secret"
	statusLegacyPlaintext credentialStatus = "legacy plaintext"
	statusLegacyEncrypted credentialStatus = "legacy encrypted"
	statusLegacyInvalid   credentialStatus = "legacy, unexpected format"
	statusMissing         credentialStatus = "missing"
)

// vendorCredential returns the storage status of the vendor credential and a
// masked hint of its value when it can be read.
func (a *admin) vendorCredential(vendor *db.Vendor) (credentialStatus, string) {
	if !vendor.Credential.IsZero() {
		plain, err := a.box.Open(vendor.VendorKey, vendor.Credential)
		if err != nil {
			return statusUnreadable, ""
		}
		return statusSealed, internal.Mask(plain)
	}
	legacy := legacyCredential(vendor)
	switch {
	case legacy.IsZero():
		return statusMissing, ""
	case legacy.Unreadable != nil:
		return statusLegacyInvalid, ""
	case legacy.Plain != "":
		return statusLegacyPlaintext, internal.Mask(legacy.Plain)
	default:
		return statusLegacyEncrypted, ""
	}
}

// check prints every vendor with the status of its credential. It returns
// the number of vendors that need attention.
func (a *admin) check() (int, error) {
	vendors, err := a.store.Vendors()
	if err != nil {
		return 0, err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR KEY\tCOMPANY\tPROCESSOR\tCREDENTIAL\tHINT")
	pending := 0
	for i := range vendors {
		conf := cancellation.Normalize(&vendors[i])
		status, hint := a.vendorCredential(&vendors[i])
		if status != statusSealed && conf.Processor.Supported() {
			pending++
		}
		proc := conf.Processor
		if proc == "" {
			proc = processor.Unknown
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", conf.VendorKey, conf.CompanyName, proc, status, hint)
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	fmt.Fprintf(a.out, "\n%d vendors, %d need attention\n", len(vendors), pending)
	return pending, nil
}

// encrypt seals the credentials still stored in legacy fields: plaintext
// values directly, legacy AES-GCM values after decrypting them with the
// legacy secret. It returns the number of vendors sealed.
func (a *admin) encrypt(legacySecret string, dryRun bool) (int, error) {
	vendors, err := a.store.Vendors()
	if err != nil {
		return 0, err
	}
	sealedCount := 0
	var errs []error
	for i := range vendors {
		vendor := &vendors[i]
		if !vendor.Credential.IsZero() || !vendor.Legacy.HasCredential() {
			continue
		}
		proc := cancellation.Normalize(vendor).Processor
		legacy := legacyCredential(vendor)
		if !proc.Supported() {
			proc = legacyProcessor(vendor)
		}
		if legacy.IsZero() {
			errs = append(errs, fmt.Errorf("%s: no legacy %s credential", vendor.VendorKey, proc))
			continue
		}
		if legacy.Unreadable != nil {
			errs = append(errs, fmt.Errorf("%s: legacy %s credential has an unexpected %s value",
				vendor.VendorKey, proc, legacy.Unreadable.Type))
			continue
		}
		plain := legacy.Plain
		if plain == "" {
			if legacySecret == "" {
				errs = append(errs, fmt.Errorf("%s: legacy-secret is required for legacy encrypted credentials",
					vendor.VendorKey))
				continue
			}
			if plain, err = secrets.OpenLegacy(legacySecret, legacy.Encrypted); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", vendor.VendorKey, err))
				continue
			}
		}
		plain = strings.TrimSpace(plain)
		if dryRun {
			fmt.Fprintf(a.out, "%s: would seal %s credential %s\n", vendor.VendorKey, proc, internal.Mask(plain))
			sealedCount++
			continue
		}
		sealed, err := a.box.Seal(vendor.VendorKey, plain)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", vendor.VendorKey, err))
			continue
		}
		if err := a.store.SealVendorCredential(vendor.VendorKey, proc, sealed); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", vendor.VendorKey, err))
			continue
		}
		fmt.Fprintf(a.out, "%s: sealed %s credential %s\n", vendor.VendorKey, proc, internal.Mask(plain))
		sealedCount++
	}
	return sealedCount, errors.Join(errs...)
}

// cancellations prints the latest cancellation records of a vendor.
func (a *admin) cancellations(vendorKey string, limit int64) error {
	if vendorKey == "" {
		return fmt.Errorf("key is required")
	}
	records, err := a.store.CancellationsByVendor(vendorKey, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tUSER\tPROCESSOR\tSTATUS\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID.Hex(), r.Time.UTC().Format("2006-01-02 15:04:05"),
			r.UserID, r.Processor, r.Status, r.Error)
	}
	return w.Flush()
}

// legacyCredential returns the legacy credential matching the vendor
// processor, or any legacy credential when the processor is unknown.
func legacyCredential(vendor *db.Vendor) *db.LegacyCredential {
	switch cancellation.Normalize(vendor).Processor {
	case processor.Stripe:
		return vendor.Legacy.StripeCredential()
	case processor.Paddle:
		return vendor.Legacy.PaddleCredential()
	}
	if lc := vendor.Legacy.StripeCredential(); lc != nil {
		return lc
	}
	return vendor.Legacy.PaddleCredential()
}

// legacyProcessor guesses the processor of a vendor without one from the
// legacy field holding its credential.
func legacyProcessor(vendor *db.Vendor) processor.Type {
	if vendor.Legacy.StripeCredential() != nil {
		return processor.Stripe
	}
	return processor.Paddle
}
