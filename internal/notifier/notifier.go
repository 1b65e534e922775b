// Package notifier defines the outbound notification contract and its
// concrete implementations. Notifier errors are always recovered locally —
// the core never propagates a NotifierFailure to its caller.
package notifier

import "context"

// Button is an interactive reply option attached to an Ask. CallbackID
// follows the approve_<id> / reject_<id> convention the approval workflow
// recognizes.
type Button struct {
	Label      string
	CallbackID string
}

// Notifier is the outbound notification contract. The core depends only on
// this narrow interface; transport (Slack, email, SMS...) lives behind it.
type Notifier interface {
	// Notify sends a fire-and-forget message.
	Notify(ctx context.Context, text string) error
	// Ask sends a message with interactive buttons and returns the callback
	// ID of whichever button the recipient pressed.
	Ask(ctx context.Context, text string, buttons []Button) (string, error)
}
