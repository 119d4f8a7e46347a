// Package retry replays storage operations that failed transiently.
// Every repository marks retryable failures with
// apperrors.ErrStorageTransient, so services can wrap whole logical units
// here and let business-rule errors surface immediately.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/perkhub/loyalty/internal/apperrors"
	"github.com/perkhub/loyalty/internal/logger"
)

const (
	maxRetries      = 3
	initialInterval = 50 * time.Millisecond
	maxInterval     = time.Second
)

// Transient replays fn on transient storage failures with bounded backoff.
// Everything else is permanent and surfaces at once. The caller must make
// sure fn is safe to replay as a whole (nothing of a failed attempt stays
// committed).
func Transient(ctx context.Context, l logger.Logger, fn func() error) error {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.MaxInterval = maxInterval

	return backoff.Retry(func() error {
		err := fn()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperrors.ErrStorageTransient):
			l.Warn("Transient storage failure, retrying", "error", err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}
