// Package notifications defines the notification model and the service
// interface implemented by the delivery backends.
package notifications

import "context"

// Notification is a message ready to be delivered. Body is the HTML version,
// PlainBody the text fallback.
type Notification struct {
	ToName    string
	ToAddress string
	ReplyTo   string
	Subject   string
	Body      string
	PlainBody string
}

// NotificationService is implemented by every notification backend.
type NotificationService interface {
	New(conf any) error
	SendNotification(context.Context, *Notification) error
}
