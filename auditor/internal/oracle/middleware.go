package oracle

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"
)

// Middleware wraps an Oracle with cross-cutting behaviour.
type Middleware func(next Oracle) Oracle

// Chain wraps o with mws; the first middleware is the outermost.
func Chain(o Oracle, mws ...Middleware) Oracle {
	for i := len(mws) - 1; i >= 0; i-- {
		o = mws[i](o)
	}
	return o
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) Middleware {
	return func(next Oracle) Oracle {
		return Func(func(ctx context.Context, p Prompt) (string, error) {
			if d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			return next.Complete(ctx, p)
		})
	}
}

// WithRetry retries failed calls with exponential backoff. It gives up
// early when the caller's context is done, the oracle is disabled or the
// circuit is open.
func WithRetry(maxRetries int, baseBackoff time.Duration, logger *slog.Logger) Middleware {
	return func(next Oracle) Oracle {
		return Func(func(ctx context.Context, p Prompt) (string, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				reply, err := next.Complete(ctx, p)
				if err == nil {
					return reply, nil
				}
				lastErr = err

				if ctx.Err() != nil || errors.Is(err, ErrDisabled) {
					return "", lastErr
				}
				var open *ErrCircuitOpen
				if errors.As(err, &open) {
					return "", err
				}

				if attempt < maxRetries {
					wait := baseBackoff * (1 << uint(attempt))
					if logger != nil {
						logger.WarnContext(ctx, "oracle: retrying call",
							"attempt", attempt+1,
							"max_retries", maxRetries,
							"backoff_ms", wait.Milliseconds(),
							"error", err)
					}
					select {
					case <-ctx.Done():
						return "", lastErr
					case <-time.After(wait):
					}
				}
			}
			return "", lastErr
		})
	}
}

// WithLogging logs every call with its duration.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next Oracle) Oracle {
		return Func(func(ctx context.Context, p Prompt) (string, error) {
			start := time.Now()
			reply, err := next.Complete(ctx, p)
			dur := time.Since(start)
			if err != nil {
				logger.WarnContext(ctx, "oracle: call failed",
					"duration_ms", dur.Milliseconds(),
					"prompt_bytes", len(p.Text),
					"image", p.ImagePNG != "",
					"error", err)
			} else {
				logger.DebugContext(ctx, "oracle: call ok",
					"duration_ms", dur.Milliseconds(),
					"prompt_bytes", len(p.Text),
					"reply_bytes", len(reply))
			}
			return reply, err
		})
	}
}

// ErrPanic wraps a panic recovered from a downstream oracle.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string { return "oracle: call panicked" }

// WithRecovery converts panics into *ErrPanic.
func WithRecovery(logger *slog.Logger) Middleware {
	return func(next Oracle) Oracle {
		return Func(func(ctx context.Context, p Prompt) (reply string, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "oracle: panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next.Complete(ctx, p)
		})
	}
}
