// Package cancellation implements the cancellation pipeline: the request is
// validated, the vendor resolved, the processor adapter dispatched and the
// outcome recorded in the append-only cancels collection.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/notifications"
	"github.com/cancelready/backend/notifications/mailqueue"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/validator"
	"go.vocdoni.io/dvote/log"
)

const (
	// DefaultEmail is recorded when the request carries no email.
	DefaultEmail = "Not provided"
	// DefaultReason is recorded when the request carries no reason.
	DefaultReason = "Not specified"

	// Longest optional values stored in a record, longer values are truncated.
	maxEmailLength    = 320
	maxReasonLength   = 500
	maxFeedbackLength = 5000
)

var successMessages = map[processor.Type]string{
	processor.Stripe: "Stripe subscription cancelled successfully.",
	processor.Paddle: "Paddle subscription cancelled",
}

// Request is a cancellation request as received from the embedded button.
// Only the identifiers are required. Any vendor key shape is accepted, an
// unknown one is rejected by the resolver.
type Request struct {
	VendorKey string `json:"vendorKey" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Email     string `json:"email,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Feedback  string `json:"feedback,omitempty"`

	// Origin and UserAgent are taken from the HTTP request and stored in the
	// record metadata.
	Origin    string `json:"-"`
	UserAgent string `json:"-"`
}

// Result describes a recorded cancellation attempt.
type Result struct {
	CancellationID     string
	Processor          processor.Type
	Status             processor.Status
	Message            string
	ProcessorReference string
}

// Store is the persistence needed by the service. *db.MongoStorage
// implements it.
type Store interface {
	VendorStore
	InsertCancellation(record *db.CancellationRecord) (internal.ObjectID, error)
}

// Config holds the dependencies of the Service. Mail is optional, when set
// the confirmation emails are delivered through a mail queue throttled by
// MailThrottle.
type Config struct {
	Store        Store
	Dispatcher   *processor.Dispatcher
	Validator    *validator.Validator
	Mail         notifications.NotificationService
	MailThrottle time.Duration
}

// Service runs cancellation requests through the pipeline.
type Service struct {
	store      Store
	resolver   *Resolver
	dispatcher *processor.Dispatcher
	validator  *validator.Validator
	mailQueue  *mailqueue.Queue
	stopMail   context.CancelFunc
}

// New creates the service. The store and the dispatcher are required.
func New(conf *Config) (*Service, error) {
	if conf == nil || conf.Store == nil {
		return nil, fmt.Errorf("missing store")
	}
	if conf.Dispatcher == nil {
		return nil, fmt.Errorf("missing processor dispatcher")
	}
	v := conf.Validator
	if v == nil {
		v = validator.New()
	}
	s := &Service{
		store:      conf.Store,
		resolver:   NewResolver(conf.Store),
		dispatcher: conf.Dispatcher,
		validator:  v,
	}
	if conf.Mail != nil {
		var ctx context.Context
		ctx, s.stopMail = context.WithCancel(context.Background())
		s.mailQueue = mailqueue.New(ctx, 0, conf.MailThrottle, conf.Mail)
		go s.mailQueue.Start()
	}
	return s, nil
}

// Validate checks the request fields. It returns an error wrapping
// ErrValidation and the validator.ValidationErrors found. Identifiers made
// only of whitespace count as missing.
func (s *Service) Validate(req *Request) error {
	if req == nil {
		return ErrMissingIdentifiers
	}
	trimmed := *req
	trimmed.VendorKey = strings.TrimSpace(req.VendorKey)
	trimmed.UserID = strings.TrimSpace(req.UserID)
	err := s.validator.Validate(&trimmed)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	for _, verr := range verrs {
		if (verr.Field == "vendorKey" || verr.Field == "userId") &&
			verr.Message == "This field is required" {
			return fmt.Errorf("%w: %w", ErrMissingIdentifiers, verrs)
		}
	}
	return fmt.Errorf("%w: %w", ErrValidation, verrs)
}

// Cancel runs one cancellation attempt. Once the vendor is resolved exactly
// one record is inserted, and the returned Result carries its id even when
// the error is not nil. A nil Result means nothing was recorded.
func (s *Service) Cancel(ctx context.Context, req *Request) (*Result, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	req.VendorKey = strings.TrimSpace(req.VendorKey)
	req.UserID = strings.TrimSpace(req.UserID)

	vendor, resolveErr := s.resolver.Resolve(req.VendorKey)
	if vendor == nil {
		return nil, resolveErr
	}

	record := s.newRecord(req, vendor)
	var outcome *processor.Outcome
	var attemptErr error
	switch {
	case resolveErr != nil:
		outcome = processor.Failed("%s", strings.TrimPrefix(resolveErr.Error(), ErrConfiguration.Error()+": "))
		attemptErr = resolveErr
	default:
		outcome, attemptErr = s.dispatch(ctx, req, vendor)
	}
	record.Status = outcome.Status
	record.Error = outcome.Error
	record.ProcessorReference = outcome.ProcessorReference
	for k, v := range outcome.Metadata {
		record.Metadata[k] = v
	}

	id, err := s.store.InsertCancellation(record)
	if err != nil {
		log.Errorw(err, "could not record cancellation attempt")
		log.Warnw("unrecorded cancellation attempt",
			"vendorKey", record.VendorKey,
			"userId", record.UserID,
			"processor", record.Processor,
			"status", record.Status,
			"error", record.Error,
			"processorReference", record.ProcessorReference)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	result := &Result{
		CancellationID:     id.Hex(),
		Processor:          record.Processor,
		Status:             record.Status,
		ProcessorReference: record.ProcessorReference,
	}
	log.Infow("cancellation recorded",
		"cancellationId", result.CancellationID,
		"vendorKey", record.VendorKey,
		"company", vendor.CompanyName,
		"processor", record.Processor,
		"status", record.Status)
	if attemptErr != nil {
		return result, attemptErr
	}
	result.Message = successMessages[record.Processor]
	s.sendConfirmation(req.Email, vendor, record)
	return result, nil
}

// dispatch selects the adapter and calls it. The returned error is nil only
// for completed outcomes.
func (s *Service) dispatch(ctx context.Context, req *Request, vendor *processor.VendorConfig,
) (*processor.Outcome, error) {
	adapter, err := s.dispatcher.Dispatch(vendor)
	switch {
	case errors.Is(err, processor.ErrUnsupported):
		return processor.Failed("%s", processor.ErrUnsupported.Error()),
			fmt.Errorf("%w: %q", ErrUnsupportedProcessor, vendor.Processor)
	case err != nil:
		return processor.Failed("%s", err.Error()), fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	outcome := adapter.Cancel(ctx, &processor.Request{
		Vendor:         vendor,
		SubscriptionID: req.UserID,
		Reason:         req.Reason,
		Feedback:       req.Feedback,
	})
	if outcome == nil {
		outcome = processor.Failed("%s returned no outcome", vendor.Processor)
	}
	switch {
	case outcome.Completed():
		return outcome, nil
	case outcome.CredentialError:
		return outcome, fmt.Errorf("%w: %s", ErrCredentialUnavailable, outcome.Error)
	default:
		if outcome.Status != processor.StatusFailed {
			outcome.Status = processor.StatusFailed
		}
		return outcome, fmt.Errorf("%w: %s", ErrUpstream, outcome.Error)
	}
}

// newRecord builds the record of the attempt with the request values and the
// defaults for the optional fields.
func (*Service) newRecord(req *Request, vendor *processor.VendorConfig) *db.CancellationRecord {
	proc := vendor.Processor
	if proc == "" {
		proc = processor.Unknown
	}
	record := &db.CancellationRecord{
		VendorKey: req.VendorKey,
		UserID:    req.UserID,
		Processor: proc,
		Status:    processor.StatusPending,
		Email:     DefaultEmail,
		Reason:    DefaultReason,
		Feedback:  truncate(req.Feedback, maxFeedbackLength),
		Metadata:  map[string]any{},
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		record.Email = truncate(email, maxEmailLength)
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		record.Reason = truncate(reason, maxReasonLength)
	}
	if req.Origin != "" {
		record.Metadata["origin"] = req.Origin
	}
	if req.UserAgent != "" {
		record.Metadata["userAgent"] = req.UserAgent
	}
	return record
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// VendorInfo is the public view of a vendor.
type VendorInfo struct {
	VendorKey   string         `json:"vendorKey"`
	CompanyName string         `json:"companyName"`
	Processor   processor.Type `json:"processor"`
}

// Vendor returns the public information of a vendor. Legacy credential
// problems are ignored here.
func (s *Service) Vendor(vendorKey string) (*VendorInfo, error) {
	conf, err := s.resolver.Resolve(strings.TrimSpace(vendorKey))
	if conf == nil {
		return nil, err
	}
	return &VendorInfo{
		VendorKey:   conf.VendorKey,
		CompanyName: conf.CompanyName,
		Processor:   conf.Processor,
	}, nil
}
