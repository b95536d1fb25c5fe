package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "palisade/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts
}

// RunConcurrent executes fn in parallel goroutines and collects results,
// categorizing domain conflict errors separately. This helper replaces the
// common pattern of WaitGroup + atomic counters in tests.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case isConflict(err):
				conflicts.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
	}
}

func isConflict(err error) bool {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Code {
	case dErrors.CodeConflict, dErrors.CodeDuplicateInFlight, dErrors.CodeKeyPayloadMismatch:
		return true
	}
	return false
}
