package enrichment

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vindiesel/vin-engine/pkg/vin"
)

// BatchItem is the outcome for one input of DecodeBatch.
type BatchItem struct {
	Input  string `json:"input"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// ProgressFunc is called once per finished item. Calls are serialized.
type ProgressFunc func(index int, item BatchItem)

// DecodeBatch decodes vins with at most concurrency gateway calls in flight.
// Results keep input order. Per-item failures (invalid VINs) are reported on
// the item; only ctx cancellation aborts the batch.
func (s *Service) DecodeBatch(ctx context.Context, vins []string, method vin.ScanMethod, concurrency int, progress ProgressFunc) ([]BatchItem, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	items := make([]BatchItem, len(vins))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, raw := range vins {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := s.Decode(gctx, raw, method)
			item := BatchItem{Input: raw, Result: res, Err: err}
			items[i] = item

			if progress != nil {
				mu.Lock()
				progress(i, item)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, ctx.Err()
}
