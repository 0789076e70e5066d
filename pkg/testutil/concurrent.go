package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "gatekeeper/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	// Denied counts gating rejections: rate limited, locked, token and code failures.
	Denied int32
	Errors int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Denied + r.Errors
}

// RunConcurrent executes fn in parallel goroutines and classifies each outcome.
// A non-nil error carrying a gating code counts as Denied; anything else as Errors.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, denied, errs atomic.Int32

	for i := range goroutines {
		wg.Go(func() {
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case isDenial(err):
				denied.Add(1)
			default:
				errs.Add(1)
			}
		})
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Denied:    denied.Load(),
		Errors:    errs.Load(),
	}
}

func isDenial(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeRateLimited, dErrors.CodeLocked,
		dErrors.CodeTokenMissing, dErrors.CodeTokenInvalid, dErrors.CodeTokenExpired,
		dErrors.CodeCodeMismatch:
		return true
	default:
		return false
	}
}
