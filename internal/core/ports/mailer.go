package ports

import "context"

// Mail is a single outbound message.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers mail through an external provider. A non-nil error
// means the message was not accepted for delivery.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
