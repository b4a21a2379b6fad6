package repositories

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"campuslink/internal/apperror"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func TestRetryPolicy(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success", []error{nil}, 1, nil},
		{"transient then success", []error{driver.ErrBadConn, nil}, 2, nil},
		{"exhausted", []error{driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn}, 3, apperror.ErrStore},
		{"not transient", []error{errors.New("syntax error")}, 1, apperror.ErrStore},
		{"not found", []error{gorm.ErrRecordNotFound}, 1, apperror.ErrNotFound},
		{"conflict passes through", []error{apperror.ErrConflictRetry}, 1, apperror.ErrConflictRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := policy.do(context.Background(), "op", func() error {
				err := tt.errs[calls]
				calls++
				return err
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{Attempts: 5, Backoff: time.Hour}.do(ctx, "op", func() error {
		calls++
		cancel()
		return driver.ErrBadConn
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, apperror.ErrStore) || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v", err)
	}
}
