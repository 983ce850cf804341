package email

import (
	"context"
	"errors"
)

var (
	// ErrProviderConfig is returned when a provider is built with bad settings.
	ErrProviderConfig = errors.New("invalid email provider configuration")
	// ErrSendFailed wraps every delivery failure.
	ErrSendFailed = errors.New("email send failed")
)

// Message is a rendered email ready to hand to a provider.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Provider delivers a single message.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
