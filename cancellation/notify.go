package cancellation

import (
	"context"

	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/notifications/mailtemplates"
	"github.com/cancelready/backend/processor"
	"go.vocdoni.io/dvote/log"
)

// sendConfirmation queues the confirmation email when the request carried a
// valid address and a mail service is configured. Failures are only logged.
func (s *Service) sendConfirmation(to string, vendor *processor.VendorConfig, record *db.CancellationRecord) {
	if s.mailQueue == nil || !internal.ValidEmail(to) {
		return
	}
	if vendor.CompanyName == "" {
		log.Debugw("skipping cancellation confirmation, vendor without company name",
			"vendorKey", vendor.VendorKey)
		return
	}
	notification, err := mailtemplates.CancellationConfirmation.ExecTemplate(
		&mailtemplates.CancellationConfirmationData{
			CompanyName:    vendor.CompanyName,
			CancellationID: record.ID.Hex(),
			Time:           record.Time.UTC().Format("2006-01-02 15:04 UTC"),
		})
	if err != nil {
		log.Warnw("could not render cancellation confirmation", "error", err)
		return
	}
	notification.ToAddress = to

	if err := s.mailQueue.Push(record.ID.Hex(), notification); err != nil {
		log.Warnw("could not queue cancellation confirmation",
			"cancellationId", record.ID.Hex(), "error", err)
	}
}

// Wait blocks until the queued confirmation emails are delivered or dropped,
// or until ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	if s.mailQueue == nil {
		return nil
	}
	return s.mailQueue.Wait(ctx)
}

// Close stops queuing confirmation emails, waits for the queued ones until
// ctx is done and stops the mail queue. Emails still queued are dropped.
func (s *Service) Close(ctx context.Context) error {
	var err error
	if s.mailQueue != nil {
		err = s.mailQueue.Close(ctx)
	}
	if s.stopMail != nil {
		s.stopMail()
	}
	return err
}
