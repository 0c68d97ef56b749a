package executor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

// lookupInterval is the pause between hierarchy snapshots while polling.
const lookupInterval = 100 * time.Millisecond

var errPending = errors.New("condition not yet satisfied")

// pollUntil calls check every interval until it reports true, returns an
// error, or the timeout elapses. check always runs at least once. A timeout
// is not an error: it yields (false, nil).
func pollUntil(ctx context.Context, timeout, interval time.Duration, check func() (bool, error)) (bool, error) {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(&backoff.ConstantBackOff{Interval: interval}, deadline)
	err := backoff.Retry(func() error {
		ok, err := check()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errPending
		}
		return nil
	}, b)

	switch {
	case err == nil:
		return true, nil
	case err == errPending:
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	default:
		return false, err
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
