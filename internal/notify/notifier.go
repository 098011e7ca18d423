// Package notify is the outbound notification channel. Address format and
// transport are opaque to the orchestration core; a send either happens or
// returns an error, there is no partial state to roll back.
package notify

import "context"

// Notifier sends a message to an address. Sends are irreversible and
// user-visible, so callers guard against duplicates before calling.
type Notifier interface {
	Send(ctx context.Context, address, message string) error
}

// Noop is the channel used when no provider is configured. It reports
// success without side effects, which keeps match flows exercisable in
// environments without SMS credentials.
type Noop struct{}

func (Noop) Send(ctx context.Context, address, message string) error {
	return nil
}
