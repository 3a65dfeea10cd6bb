package middleware

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/telegram/dispatch"
)

// Counters tallies processed updates.
type Counters struct {
	handled atomic.Uint64
	failed  atomic.Uint64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Handled uint64 `json:"handled"`
	Failed  uint64 `json:"failed"`
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{Handled: c.handled.Load(), Failed: c.failed.Load()}
}

// Metrics counts every update that reaches it and every one that fails.
func Metrics(c *Counters) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx context.Context, upd tele.Update) error {
			err := next(ctx, upd)
			c.handled.Add(1)
			if err != nil {
				c.failed.Add(1)
			}
			return err
		}
	}
}
