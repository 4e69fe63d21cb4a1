package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

// Channel delivers a rendered notification. A false result with a nil error is an ordinary
// rejection by the provider; a non-nil error means the provider could not be reached.
type Channel interface {
	Send(ctx context.Context, recipient, title, body string) (bool, error)
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, recipient, title, body string) (bool, error)

// Send calls f.
func (f ChannelFunc) Send(ctx context.Context, recipient, title, body string) (bool, error) {
	return f(ctx, recipient, title, body)
}

// Channels maps a notification type to its delivery channel.
type Channels map[models.NotificationType]Channel

// Lookup returns the channel for t.
func (c Channels) Lookup(t models.NotificationType) (Channel, error) {
	ch, ok := c[t]
	if !ok || ch == nil {
		return nil, fmt.Errorf("no channel registered for %q", t)
	}
	return ch, nil
}

type mailSender interface {
	Send(ctx context.Context, subject, body, to string) (bool, error)
}

// NewEmailChannel sends the title as subject and the body as plain text.
func NewEmailChannel(mailer mailSender) Channel {
	return ChannelFunc(func(ctx context.Context, recipient, title, body string) (bool, error) {
		return mailer.Send(ctx, title, body, recipient)
	})
}

type smsSender interface {
	Send(ctx context.Context, from, to, text string) (bool, error)
	DefaultSender() string
}

type smsSenderKey struct{}

// WithSMSSender overrides the SMS sender name for sends made with ctx.
func WithSMSSender(ctx context.Context, sender string) context.Context {
	if sender == "" {
		return ctx
	}
	return context.WithValue(ctx, smsSenderKey{}, sender)
}

// NewSMSChannel sends title and body as a single text message.
func NewSMSChannel(client smsSender) Channel {
	return ChannelFunc(func(ctx context.Context, recipient, title, body string) (bool, error) {
		from, _ := ctx.Value(smsSenderKey{}).(string)
		if from == "" {
			from = client.DefaultSender()
		}
		return client.Send(ctx, from, recipient, title+"\n\n"+body)
	})
}
