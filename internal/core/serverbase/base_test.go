// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if b.State() != StateCreated {
		t.Fatalf("initial state = %s", b.State())
	}
	if err := b.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if err := b.Begin(context.Background()); err == nil {
		t.Error("second Begin() should fail")
	}

	var exited atomic.Bool
	b.Go(func(ctx context.Context) {
		<-ctx.Done()
		exited.Store(true)
	})

	b.MarkRunning()
	if !b.IsRunning() {
		t.Fatalf("state = %s, want running", b.State())
	}

	if !b.BeginStop() {
		t.Fatal("BeginStop() = false for a running base")
	}
	if b.BeginStop() {
		t.Error("second BeginStop() should report nothing to stop")
	}
	b.Wait()
	if !exited.Load() {
		t.Error("tracked goroutine did not observe cancellation")
	}
	b.MarkStopped()
	b.MarkStopped()
	if b.State() != StateStopped {
		t.Errorf("state = %s, want stopped", b.State())
	}
	if _, ok := <-b.Err(); ok {
		t.Error("Err() should be closed after MarkStopped")
	}
	b.Report(errors.New("late"))
}

func TestBeginStop_NeverStarted(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if b.BeginStop() {
		t.Error("BeginStop() on a created base should return false")
	}
	if b.State() != StateStopped {
		t.Errorf("state = %s, want stopped", b.State())
	}
}

func TestBegin_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBase()
	err := b.Begin(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Begin() error = %v, want context.Canceled", err)
	}
	if b.State() != StateFailed {
		t.Errorf("state = %s, want failed", b.State())
	}
	select {
	case got := <-b.Err():
		if !errors.Is(got, context.Canceled) {
			t.Errorf("Err() delivered %v", got)
		}
	default:
		t.Error("failure was not reported on Err()")
	}
}

func TestReport_DropsWhenFull(t *testing.T) {
	t.Parallel()

	b := NewBase()
	for range 5 {
		b.Report(errors.New("boom"))
	}
	if got := len(b.Err()); got != 1 {
		t.Errorf("buffered errors = %d, want 1", got)
	}
}

func TestConcurrentStop(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	b.MarkRunning()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.BeginStop() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("BeginStop() succeeded %d times, want 1", wins.Load())
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		name  string
	}{
		{StateCreated, "created"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}
