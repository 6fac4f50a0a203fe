package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, fastRetry, zap.NewNop(), func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	var cancelled *ErrCancelled
	require.ErrorAs(t, err, &cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestWithRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOptions{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}

	calls := 0
	_, err := withRetry(ctx, opts, zap.NewNop(), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, &ErrTimeout{Msg: "slow", Err: errors.New("i/o timeout")}
	})
	assert.Equal(t, 1, calls)
	assert.Error(t, err)
}

func TestWithRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), RetryOptions{}, zap.NewNop(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&ErrDatabaseConnection{Msg: "x"}, true},
		{&ErrTimeout{Msg: "x"}, true},
		{&ErrQueryExecution{Msg: "x"}, false},
		{&ErrInvalidInput{Msg: "x"}, false},
		{&ErrCancelled{Msg: "x"}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%T", tt.err)
	}
}

func TestErrorMessages(t *testing.T) {
	inner := errors.New("boom")
	err := &ErrQueryExecution{Msg: "database rejected query", Err: inner}
	assert.Equal(t, "query execution error: database rejected query: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "database connection error: pool closed", (&ErrDatabaseConnection{Msg: "pool closed"}).Error())
}
