package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSafeGoRunsTask(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	// Reaching here without the test binary crashing means the panic was
	// recovered inside the goroutine.
}

func TestSafeGoEnforcesTimeout(t *testing.T) {
	var expired atomic.Bool
	done := make(chan struct{})

	SafeGo(context.Background(), 10*time.Millisecond, "slow task", func(ctx context.Context) error {
		defer close(done)
		select {
		case <-ctx.Done():
			expired.Store(true)
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("timeout never fired")
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
	if !expired.Load() {
		t.Fatal("expected task context to expire")
	}
}

func TestSafeGoNoError(t *testing.T) {
	done := make(chan struct{})

	SafeGoNoError(context.Background(), time.Second, "no error task", func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}
