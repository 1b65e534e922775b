package notifier

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Notifier with bounded exponential backoff (max 3
// attempts, ~2s total) so a transient transport error doesn't drop a
// notification that would otherwise have succeeded on the next try. It does
// not change propagation policy: a call that still fails after retries is
// still swallowed by the caller as a NotifierFailure.
type Retrying struct {
	inner Notifier
}

// NewRetrying wraps a Notifier with retry behavior.
func NewRetrying(inner Notifier) *Retrying {
	return &Retrying{inner: inner}
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 800 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)
}

// Notify retries the wrapped Notifier's Notify up to the policy's bound.
func (r *Retrying) Notify(ctx context.Context, text string) error {
	return backoff.Retry(func() error {
		return r.inner.Notify(ctx, text)
	}, retryPolicy(ctx))
}

// Ask retries the wrapped Notifier's Ask up to the policy's bound.
func (r *Retrying) Ask(ctx context.Context, text string, buttons []Button) (string, error) {
	var reply string
	err := backoff.Retry(func() error {
		var err error
		reply, err = r.inner.Ask(ctx, text, buttons)
		return err
	}, retryPolicy(ctx))
	return reply, err
}
