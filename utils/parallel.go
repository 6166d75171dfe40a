package utils

import (
	"context"
	"math"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// RangeWorkFunc does the work for indices in [from, to).
type RangeWorkFunc func(from, to int) error

// GroupWorkParallel splits totalSize independent units of work into contiguous
// index ranges, one per worker, and runs them in parallel. The first error from
// any range is merged into the returned error; work already started is allowed
// to finish.
func GroupWorkParallel(ctx context.Context, totalSize int, work RangeWorkFunc) error {
	if totalSize <= 0 {
		return nil
	}
	numGroups := MinInt(ParallelFactor, totalSize)
	groupSize := int(math.Floor(float64(totalSize) / float64(numGroups)))
	extra := totalSize % numGroups

	var wait sync.WaitGroup
	var mu sync.Mutex
	var bigErr error

	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		from := groupSize * groupNum
		to := groupSize * (groupNum + 1)
		if groupNum == numGroups-1 {
			to += extra
		}
		fromCopy, toCopy := from, to
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			if ctx.Err() != nil {
				return
			}
			if err := work(fromCopy, toCopy); err != nil {
				mu.Lock()
				bigErr = multierr.Combine(bigErr, err)
				mu.Unlock()
			}
		})
	}
	wait.Wait()
	if bigErr != nil {
		return bigErr
	}
	return ctx.Err()
}
