package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tokenshop-backend/internal/logger"
)

const defaultSideEffectTimeout = 30 * time.Second

// SideEffects runs best-effort work after a transaction has committed.
// Failures are logged and never reach the caller of the committed operation.
type SideEffects interface {
	Dispatch(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// AsyncSideEffects runs each dispatched function on its own goroutine with a
// context that survives the request but is bounded by timeout.
type AsyncSideEffects struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncSideEffects(timeout time.Duration) *AsyncSideEffects {
	return &AsyncSideEffects{timeout: timeout}
}

func (a *AsyncSideEffects) Dispatch(ctx context.Context, name string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		runSideEffect(ctx, name, fn)
	}()
}

// Wait blocks until every dispatched function has returned.
func (a *AsyncSideEffects) Wait() {
	a.wg.Wait()
}

// InlineSideEffects runs dispatched work on the caller's goroutine. Batch jobs
// use it so the process does not exit before the work is done.
type InlineSideEffects struct{}

func (InlineSideEffects) Dispatch(ctx context.Context, name string, fn func(ctx context.Context) error) {
	runSideEffect(ctx, name, fn)
}

func runSideEffect(ctx context.Context, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Side effect panicked", "side_effect", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "Side effect failed", "side_effect", name, "error", err)
	}
}
