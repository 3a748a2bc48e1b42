package pagination

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
	"golang.org/x/sync/errgroup"
)

// PageTask is one page still to be fetched.
type PageTask struct {
	// Seq is the page number; the first page is 1.
	Seq     int
	Start   int
	Request client.Request
}

// PageResult is a fetched page.
type PageResult struct {
	Seq      int
	Document *envelope.Document
}

// Partition splits tasks into n buckets by Seq modulo n. Each bucket keeps
// the relative order of its tasks. n below 1 is treated as 1.
func Partition(tasks []PageTask, n int) [][]PageTask {
	if n < 1 {
		n = 1
	}
	buckets := make([][]PageTask, n)
	for _, task := range tasks {
		i := task.Seq % n
		if i < 0 {
			i += n
		}
		buckets[i] = append(buckets[i], task)
	}
	return buckets
}

// RunAll fetches tasks on the connection's worker count and returns the
// pages sorted by Seq.
//
// Each worker fetches its bucket sequentially. The first failure cancels
// the other workers and is returned as is; no results are returned with it.
func (f *Fetcher) RunAll(ctx context.Context, tasks []PageTask) ([]PageResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	n := workerCount(f.conn.Workers())
	fetchWorkers.Set(float64(n))
	buckets := Partition(tasks, n)
	batches := make([][]PageResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i, bucket := range buckets {
		g.Go(func() error {
			batch, err := f.worker(gctx, i, bucket)
			if err != nil {
				return err
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Warn().Err(err).Int("workers", n).Int("pages", len(tasks)).Msg("Paged fetch aborted")
		return nil, err
	}

	results := make([]PageResult, 0, len(tasks))
	for _, batch := range batches {
		results = append(results, batch...)
	}
	slices.SortFunc(results, func(a, b PageResult) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return results, nil
}

// worker fetches bucket one page at a time.
func (f *Fetcher) worker(ctx context.Context, workerID int, bucket []PageTask) ([]PageResult, error) {
	start := time.Now()
	batch := make([]PageResult, 0, len(bucket))

	for _, task := range bucket {
		if err := ctx.Err(); err != nil {
			f.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", len(batch)).
				Msg("Worker stopping (context cancelled)")
			return nil, err
		}

		doc, err := f.conn.Send(ctx, task.Request)
		if err != nil {
			return nil, err
		}
		pagesFetchedTotal.Inc()
		batch = append(batch, PageResult{Seq: task.Seq, Document: doc})
	}

	if len(batch) > 0 {
		f.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", len(batch)).
			Dur("duration", time.Since(start)).
			Msg("Worker completed")
	}
	return batch, nil
}

func workerCount(n int) int {
	return max(client.MinWorkers, min(n, client.MaxWorkers))
}
