package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteMakesSingleAttemptByDefault(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false}, nil)

	attempts := 0
	errConn := errors.New("connection refused")
	err := exec.Execute(context.Background(), "upload", func(context.Context) error {
		attempts++
		return errConn
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errConn) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteRetriesWhenConfigured(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "health", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	errConn := errors.New("connection reset")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "upload", func(context.Context) error {
			return errConn
		}, classifier)
		if !errors.Is(err, errConn) {
			t.Fatalf("expected connection error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "upload", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if exec.State("upload") != "open" {
		t.Fatalf("expected open breaker, got %s", exec.State("upload"))
	}
	if exec.State("generate-report") != "closed" {
		t.Fatalf("expected untouched route to be closed")
	}
}

func TestExecuteIgnoresFailuresNotRecorded(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:     true,
		BreakerMinRequests: 1,
	}, nil)

	for i := 0; i < 5; i++ {
		_ = exec.Execute(context.Background(), "upload", func(context.Context) error {
			return context.DeadlineExceeded
		}, func(error) ErrorClassification {
			return ErrorClassification{RecordFailure: false}
		})
	}
	if exec.State("upload") != "closed" {
		t.Fatalf("timeouts must not trip the breaker, got %s", exec.State("upload"))
	}
}

func TestExecuteReportsBreakerTransitions(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 1,
		BreakerOpenTimeout:  time.Minute,
		OnStateChange: func(operation, state string) {
			transitions = append(transitions, operation+":"+state)
		},
	}, nil)

	_ = exec.Execute(context.Background(), "upload", func(context.Context) error {
		return errors.New("connection refused")
	}, nil)

	if len(transitions) != 1 || transitions[0] != "upload:open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}
