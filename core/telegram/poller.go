package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
)

const (
	defaultLongPollTimeout = 10 * time.Second
	defaultMaxInFlight     = 16
)

// PollOptions configures RunLongPoll.
type PollOptions struct {
	Timeout        time.Duration
	MaxInFlight    int
	HandlerTimeout time.Duration
}

// RunLongPoll pulls updates with getUpdates and hands each to h on its own
// goroutine, at most MaxInFlight at a time. It returns once ctx is done and
// every started handler has finished.
func RunLongPoll(ctx context.Context, bot *tele.Bot, h dispatch.HandlerFunc, opts PollOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLongPollTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 25 * time.Second
	}

	poller := &tele.LongPoller{Timeout: opts.Timeout}
	updates := make(chan tele.Update, 100)
	stop := make(chan struct{})
	pollDone := make(chan struct{})
	go func() {
		poller.Poll(bot, updates, stop)
		close(pollDone)
	}()

	sem := make(chan struct{}, opts.MaxInFlight)
	var wg sync.WaitGroup
	run := func(upd tele.Update) {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.HandlerTimeout)
			defer cancel()
			if err := h(hctx, upd); err != nil {
				logger.LogEvent(hctx, logger.Component("tg"), slog.LevelWarn, "poll.handler_error",
					slog.Int("update_id", upd.ID),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
			}
		}()
	}

	for {
		select {
		case upd := <-updates:
			run(upd)
		case <-ctx.Done():
			close(stop)
			for {
				select {
				case upd := <-updates:
					run(upd)
				case <-pollDone:
					for len(updates) > 0 {
						run(<-updates)
					}
					wg.Wait()
					return nil
				}
			}
		}
	}
}
