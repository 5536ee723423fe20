package runner

import (
	"context"
	"fmt"
)

// Handle is a connection to the target owned by a single worker.
// A handle that returned an error from Perform must not be reused.
type Handle interface {
	// Perform executes one request and returns the number of body bytes read.
	Perform(ctx context.Context) (int64, error)
	Release() error
}

// Executor creates handles bound to the configured target and method.
type Executor interface {
	Open(ctx context.Context) (Handle, error)
}

// Logger receives coordinator and worker progress messages.
type Logger interface {
	Logf(format string, args ...any)
}

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// HTTPError represents an HTTP response counted as a failure.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// loggingExecutor wraps an Executor with failure logging.
type loggingExecutor struct {
	inner  Executor
	logger FailureLogger
}

// WithLogging wraps an Executor so that every failed Open or Perform is
// reported to logger.
func WithLogging(exec Executor, logger FailureLogger) Executor {
	if logger == nil {
		return exec
	}
	return &loggingExecutor{
		inner:  exec,
		logger: logger,
	}
}

func (l *loggingExecutor) Open(ctx context.Context) (Handle, error) {
	h, err := l.inner.Open(ctx)
	if err != nil {
		l.logger.LogFailure(err)
		return nil, err
	}
	return &loggingHandle{inner: h, logger: l.logger}, nil
}

type loggingHandle struct {
	inner  Handle
	logger FailureLogger
}

func (l *loggingHandle) Perform(ctx context.Context) (int64, error) {
	n, err := l.inner.Perform(ctx)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return n, err
}

func (l *loggingHandle) Release() error {
	return l.inner.Release()
}
