// internal/orchestrator/retry.go
package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	custom_errors "codesentry/internal/errors"
)

// RetryPolicy retries transient engine failures a fixed number of times with
// a constant delay between attempts.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Do calls op until it succeeds, fails permanently, or retries run out.
// The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, notify func(err error, wait time.Duration)) error {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(retries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err != nil && !custom_errors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}
