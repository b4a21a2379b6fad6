package repositories

import (
	"context"
	"database/sql/driver"
	"time"

	"campuslink/internal/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// RetryPolicy bounds how often a store call is retried on transient errors.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // doubled after every attempt
}

var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 100 * time.Millisecond}

// noRetry is used inside transactions, the transaction as a whole is retried instead.
var noRetry = RetryPolicy{Attempts: 1}

func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	backoff := p.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= p.Attempts || !isTransient(err) {
			break
		}
		select {
		case <-ctx.Done():
			return apperror.WrapStore(ctx.Err(), op)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return translate(err, op)
}

func isTransient(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}

// translate maps gorm errors onto the application taxonomy.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(apperror.ErrNotFound, op)
	default:
		return apperror.WrapStore(err, op)
	}
}
