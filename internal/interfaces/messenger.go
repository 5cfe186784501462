package interfaces

import "context"

// Messenger delivers a text message to a phone number. A failed send is
// reported as an error and may be retried by the caller.
type Messenger interface {
	Send(ctx context.Context, phone, text string) error
}
