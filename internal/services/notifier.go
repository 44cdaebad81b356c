package services

import "context"

// Notifier delivers messages to a chat channel or reply target. Delivery is
// best-effort: callers log errors and carry on.
type Notifier interface {
	SendMessage(ctx context.Context, target, text string) error
}
