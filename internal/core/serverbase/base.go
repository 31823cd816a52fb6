// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type (
	// Base is embedded by listeners. An instance is single-use.
	Base struct {
		state atomic.Int32

		mu      sync.Mutex
		lastErr error

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup
		errCh  chan error
		closed bool
	}
)

// NewBase returns a Base in StateCreated.
func NewBase() *Base {
	b := &Base{errCh: make(chan error, 1)}
	b.state.Store(int32(StateCreated))
	return b
}

// State returns the current state.
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning reports whether the state is StateRunning.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// Err delivers errors reported by tracked goroutines. It is closed by
// MarkStopped.
func (b *Base) Err() <-chan error {
	return b.errCh
}

// LastError returns the error passed to Fail, if any.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Begin moves Created to Starting. A cancelled ctx fails the Base.
func (b *Base) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		b.Fail(fmt.Errorf("context cancelled before start: %w", err))
		return b.LastError()
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start in state %s", b.State())
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// MarkRunning moves Starting to Running.
func (b *Base) MarkRunning() {
	b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

// Fail records err, enters StateFailed and cancels tracked goroutines.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.Report(err)
}

// BeginStop moves Starting or Running to Stopping and cancels Context. It
// returns false when there is nothing to stop; a Base that never started
// goes straight to StateStopped.
func (b *Base) BeginStop() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				b.cancel()
				return true
			}
		default:
			return false
		}
	}
}

// MarkStopped enters StateStopped and closes Err. Call it after Wait.
func (b *Base) MarkStopped() {
	b.state.Store(int32(StateStopped))
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.errCh)
	}
}

// Go runs fn on a tracked goroutine with the lifecycle context.
func (b *Base) Go(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (b *Base) Wait() {
	b.wg.Wait()
}

// Report sends err on the Err channel, dropping it when the buffer is full.
func (b *Base) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.errCh <- err:
	default:
	}
}
