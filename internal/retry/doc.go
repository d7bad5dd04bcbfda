// Package retry provides bounded retry with exponential backoff for
// establishing store sessions.
//
// An Executor runs an operation once and, while the error is classified as
// transient, retries it after a backoff delay until the strategy's attempt
// budget is spent or the context is done.
//
//	strategy := retry.NewExponentialBackoff(5, retry.WithInitialDelay(100*time.Millisecond))
//	executor := retry.NewExecutor(retry.ClassifierFunc(isTransient), strategy)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return dial(ctx)
//	})
//
// MaxAttempts counts every invocation of the operation, including the first.
package retry
