package retry

import (
	"context"
	"time"
)

// Executor runs an operation under a BackoffStrategy, retrying errors the
// ErrorClassifier marks as transient.
//
// An Executor is safe for concurrent use. WithOnRetry returns a copy.
type Executor struct {
	classifier ErrorClassifier
	strategy   BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a retry executor. Panics if classifier or strategy is nil.
func NewExecutor(classifier ErrorClassifier, strategy BackoffStrategy) *Executor {
	if classifier == nil {
		panic("retry: classifier cannot be nil")
	}
	if strategy == nil {
		panic("retry: strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
	}
}

// WithOnRetry returns a new Executor that calls callback before each wait.
// attempt is the 1-based number of the attempt that just failed.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Strategy returns the backoff strategy.
func (e *Executor) Strategy() BackoffStrategy {
	return e.strategy
}

// Execute runs operation until it succeeds, fails with a non-transient error,
// the attempt budget is spent or ctx is done. It returns the number of
// invocations made and the last error.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) (int, error) {
	maxAttempts := e.strategy.MaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 1
	lastErr := operation(ctx)
	for lastErr != nil && attempts < maxAttempts {
		if !e.classifier.IsTransient(lastErr) {
			return attempts, lastErr
		}
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		delay := e.strategy.NextDelay(attempts - 1)
		if e.onRetry != nil {
			e.onRetry(attempts, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
		}

		attempts++
		lastErr = operation(ctx)
	}

	return attempts, lastErr
}
