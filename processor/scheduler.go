package processor

import (
	"context"
	"runtime"
	"time"

	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

// DefaultWorkers returns the default size of the processing pool: all cores
// but two, which are left to I/O and orchestration.
func DefaultWorkers() int {
	if workers := runtime.NumCPU() - 2; workers >= 1 {
		return workers
	}
	return 1
}

// Task processes one timestamp and returns its date key and segments.
type Task func(ctx context.Context, date time.Time) (string, map[common.Indicator]IndicatorRaster, error)

type dateResult struct {
	dateKey  string
	segments map[common.Indicator]IndicatorRaster
	err      error
}

// RunAll processes the dates on a fixed-size worker pool and merges the
// results into a SegmentIndex as they complete. A failed date is logged and
// skipped: it never interrupts its siblings. RunAll returns once every date
// is done.
func RunAll(ctx context.Context, dates []time.Time, workers int, task Task) SegmentIndex {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	wp := workerpool.New(workers)
	results := make(chan dateResult)
	for _, date := range dates {
		date := date
		wp.Submit(func() {
			dateKey, segments, err := task(ctx, date)
			results <- dateResult{dateKey: dateKey, segments: segments, err: err}
		})
	}
	go func() {
		wp.StopWait()
		close(results)
	}()

	index := SegmentIndex{}
	for res := range results {
		if res.err != nil {
			log.Logger(ctx).Error("date skipped", zap.String("date", res.dateKey), zap.Error(res.err))
			continue
		}
		for indicator, segment := range res.segments {
			index.add(indicator, res.dateKey, segment)
		}
	}
	return index
}
