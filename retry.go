package uberjob

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// RetryFunc wraps a single node's underlying call with retry semantics.
// call performs one attempt; RetryFunc returns the first successful
// result or the terminal error once retries (if any) are exhausted. A
// nil RetryFunc means "call once, no retries" -- the scheduler's
// default.
//
// observer.Retrying is invoked for every attempt that failed but will be
// retried; the attempt that exhausts the budget is reported through the
// normal Failed callback instead, matching the rule that retries do not
// count as a recorded node failure until the last attempt gives up.
type RetryFunc func(ctx context.Context, node *Node, call func() (any, error), observer ProgressObserver) (any, error)

// Retry builds a RetryFunc that retries a failing call up to maxAttempts
// times total (so maxAttempts-1 retries), backing off exponentially
// between attempts. maxAttempts <= 1 disables retrying: the call runs
// exactly once.
//
// This is the module's analogue of the reference implementation's
// create_retry helper, rebuilt on cenkalti/backoff/v4 rather than a
// hand-rolled sleep loop: NewExponentialBackOff supplies the
// jittered-exponential delay curve and WithMaxRetries caps the attempt
// count, which is exactly the shape create_retry wraps around a single
// no-argument callable.
func Retry(maxAttempts int) RetryFunc {
	return func(ctx context.Context, node *Node, call func() (any, error), observer ProgressObserver) (any, error) {
		if maxAttempts <= 1 {
			return call()
		}

		var result any
		attempt := 0
		operation := func() error {
			attempt++
			v, err := call()
			if err != nil {
				if attempt >= maxAttempts {
					return backoff.Permanent(err)
				}
				if observer != nil {
					observer.Retrying(node, attempt)
				}
				return err
			}
			result = v
			return nil
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)),
			ctx,
		)
		err := backoff.Retry(operation, policy)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
