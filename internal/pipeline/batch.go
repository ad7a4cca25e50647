package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Batch is the ordered outcome of RunBatch.
type Batch struct {
	Results []Result `json:"results" yaml:"results"`
	Summary Summary  `json:"summary" yaml:"summary"`
}

// RunBatch processes targets with at most concurrency in flight. A failing
// target is recorded in its Result and does not stop the others; results
// keep the input order. The only error returned is ctx's.
func (p *Pipeline) RunBatch(ctx context.Context, targets []Target, concurrency int) (*Batch, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	start := time.Now()
	slog.Info("Processing targets", "targets", len(targets), "concurrency", concurrency)

	results := make([]Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, t := range targets {
		g.Go(func() error {
			slog.Debug("Processing target", "target", t.Name(), "progress", fmt.Sprintf("%d/%d", i+1, len(targets)))

			res, err := p.Run(ctx, t)
			if err != nil {
				slog.Warn("Target failed", "target", t.Name(), "kind", res.ErrorKind, "err", err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{Results: results, Summary: Summarize(results)}
	batch.Summary.Elapsed = time.Since(start)

	slog.Info("Batch finished",
		"total", batch.Summary.Total,
		"succeeded", batch.Summary.Succeeded,
		"failed", batch.Summary.Failed,
		"elapsed", batch.Summary.Elapsed)

	return batch, ctx.Err()
}
