package audit

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/content-pulse/internal/model"
)

// sleepFn is swapped in tests to observe inter-batch pauses.
var sleepFn = time.Sleep

// runBatches partitions accounts into consecutive batches of batchSize
// (the last may be smaller) and processes the batches strictly in order.
// Before any member of a batch starts, announce runs for every member, so
// the whole batch becomes visible at once. Members then run concurrently;
// work must handle its own failures because nothing cancels siblings. A
// fixed pause separates consecutive batches and fires numBatches-1 times.
func runBatches(
	ctx context.Context,
	accounts []model.Account,
	batchSize int,
	pause time.Duration,
	announce func(*model.Account),
	work func(context.Context, *model.Account),
) {
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(accounts); start += batchSize {
		end := min(start+batchSize, len(accounts))
		batch := accounts[start:end]

		for i := range batch {
			announce(&batch[i])
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchSize)
		for i := range batch {
			acct := &batch[i]
			g.Go(func() error {
				work(gctx, acct)
				return nil
			})
		}
		_ = g.Wait() // members never return errors; failures are data

		if end < len(accounts) && pause > 0 {
			sleepFn(pause)
		}
	}
}
