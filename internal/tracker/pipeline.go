package tracker

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/misc"
	"pricewatch/internal/model"

	"github.com/pkg/errors"
)

// Sentinel errors a Fetcher wraps to classify a failed attempt.
var (
	ErrFetchParse   = errors.New("failed to parse product data")
	ErrFetchBlocked = errors.New("blocked by site")
)

type FetchErrorKind int

const (
	FetchNetwork FetchErrorKind = iota
	FetchTimeout
	FetchParse
	FetchBlocked
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchParse:
		return "parse_failure"
	case FetchBlocked:
		return "blocked"
	default:
		return "network_failure"
	}
}

// FetchError is the terminal failure of a fetch cycle, after every retry is
// spent. Cause is the error of the last attempt.
type FetchError struct {
	Kind  FetchErrorKind
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// fetchWithRetry runs the full attempt cycle for one product: up to
// MaxRetries attempts, each through the rate limiter with its own timeout,
// with a fixed backoff between attempts. It never touches the store; the
// caller records the outcome. A canceled parent context aborts the cycle
// with the context's error rather than a FetchError.
func (e *Engine) fetchWithRetry(ctx context.Context, p model.Product) (PriceSample, error) {
	var lastErr error
	for attempt := 1; attempt <= e.Config.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, e.Config.RetryBackoff); err != nil {
				return PriceSample{}, err
			}
		}

		release, err := e.Limiter.Acquire(ctx, p.Site)
		if err != nil {
			return PriceSample{}, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, e.Config.RequestTimeout)
		sample, err := e.Fetcher.Fetch(attemptCtx, p)
		cancel()
		release()

		if err == nil {
			return sample, nil
		}
		if ctx.Err() != nil {
			return PriceSample{}, ctx.Err()
		}
		lastErr = err
		e.Logger.Warnf("fetchWithRetry: Attempt %d/%d failed for Product: %s, ID: %s, err: %v",
			attempt, e.Config.MaxRetries, misc.StringLimit(p.Name, 45), p.ID, err)
	}
	return PriceSample{}, &FetchError{Kind: classifyFetchError(lastErr), Cause: lastErr}
}

func classifyFetchError(err error) FetchErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FetchTimeout
	case errors.Is(err, ErrFetchBlocked):
		return FetchBlocked
	case errors.Is(err, ErrFetchParse):
		return FetchParse
	default:
		return FetchNetwork
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
