package lifecycle

import (
	"context"
	"time"
)

// DefaultDeleteDelay is the pause between two deletes of one batch.
const DefaultDeleteDelay = 50 * time.Millisecond

// BatchResult records every outcome of a delete batch.
type BatchResult struct {
	Deleted []int
	Failed  []int
}

func (r *Result) merge(b BatchResult) {
	r.Deleted = append(r.Deleted, b.Deleted...)
	r.Failed = append(r.Failed, b.Failed...)
}

// deleteBatch issues one delete per id in order. A failure never stops the
// batch. The pause is skipped before the first call and when ctx is done.
func (c *Coordinator) deleteBatch(ctx context.Context, chatID int64, ids []int) BatchResult {
	var res BatchResult
	for i, id := range ids {
		if i > 0 {
			c.pause(ctx)
		}
		if err := c.gw.DeleteMessage(ctx, chatID, id); err != nil {
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res
}

func (c *Coordinator) pause(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	c.sleep(ctx, c.delay)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// deleteSet returns ids without duplicates, zeros and the skip values, keeping order.
func deleteSet(ids []int, skip ...int) []int {
	seen := make(map[int]struct{}, len(ids)+len(skip))
	for _, s := range skip {
		seen[s] = struct{}{}
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
