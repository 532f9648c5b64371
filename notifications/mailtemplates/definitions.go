package mailtemplates

import "github.com/cancelready/backend/notifications"

// CancellationConfirmation is sent to the end user after a subscription was
// cancelled. It expects a CancellationConfirmationData.
var CancellationConfirmation = MailTemplate{
	File: "cancellation_confirmation",
	Placeholder: notifications.Notification{
		Subject: "Your {{.CompanyName}} subscription has been cancelled",
		PlainBody: `Your {{.CompanyName}} subscription was cancelled on {{.Time}}. No further charges will be made.

Cancellation reference: {{.CancellationID}}`,
	},
}

// CancellationConfirmationData holds the values rendered in the
// CancellationConfirmation template.
type CancellationConfirmationData struct {
	CompanyName    string
	CancellationID string
	Time           string
}
