package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy bounds how long a busy database is retried before the error
// surfaces to the caller.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: 50 * time.Millisecond, MaxDelay: time.Second}
}

// Primary result codes; extended codes keep these in the low byte.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// isBusy reports lock contention, the only failure worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func (s *Store) do(ctx context.Context, op string, fn func() error) error {
	attempts := s.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.retry.Delay),
		retry.MaxDelay(s.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug().Err(err).Uint("attempt", n+1).Str("op", op).Msg("database busy, retrying")
		}),
	)
}
