// Package lifecycle keeps each chat down to a small window of bot messages:
// it decides per event what to send, what to delete and what to track.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/gateway"
	"github.com/m3rciful/menubot/core/telegram/menu"
	"github.com/m3rciful/menubot/core/telegram/session"
)

// Mode selects how an event changes the visible set.
type Mode string

const (
	// ModeReset deletes everything, then shows the main menu as the only message.
	ModeReset Mode = "reset"
	// ModeReplace sends the new screen first, then deletes the previous ones.
	ModeReplace Mode = "replace"
	// ModeClearOnly wipes the visible set and sends a confirmation.
	ModeClearOnly Mode = "clear"
	// ModeEcho answers free text without touching the visible set.
	ModeEcho Mode = "echo"
)

// ClearPolicy decides whether the clean confirmation is tracked.
type ClearPolicy string

const (
	// ClearTrack keeps the clean confirmation as the only tracked message.
	ClearTrack ClearPolicy = "track"
	// ClearEmpty leaves nothing tracked after a clean.
	ClearEmpty ClearPolicy = "empty"
)

// storeWriteTimeout bounds the write that records a delivered message.
const storeWriteTimeout = 5 * time.Second

// Gateway is the subset of Bot API calls the coordinator issues.
type Gateway interface {
	SendMessage(ctx context.Context, out gateway.Outgoing) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Options tunes a Coordinator.
type Options struct {
	// DeleteDelay is the pause between deletes; zero or negative disables it.
	DeleteDelay time.Duration
	ClearPolicy ClearPolicy
}

// Request describes one event to apply.
type Request struct {
	ChatID  int64
	Mode    Mode
	Key     menu.Key
	Context menu.Context
	// SourceMessageID is the message whose button was pressed, if any.
	SourceMessageID int
	// Text is the free text for ModeEcho.
	Text string
}

// Result reports what happened. A failed send is reported in SendErr, not as an error.
type Result struct {
	Sent    int
	SendErr error
	Deleted []int
	Failed  []int
	Tracked []int
}

// Coordinator applies Requests against a session store and a gateway.
type Coordinator struct {
	store  session.Store
	gw     Gateway
	delay  time.Duration
	policy ClearPolicy
	sleep  func(context.Context, time.Duration)
	log    *slog.Logger
}

// NewCoordinator wires a coordinator. Unknown clear policies fall back to ClearTrack.
func NewCoordinator(store session.Store, gw Gateway, opts Options) *Coordinator {
	policy := opts.ClearPolicy
	if policy != ClearEmpty {
		policy = ClearTrack
	}
	return &Coordinator{
		store:  store,
		gw:     gw,
		delay:  opts.DeleteDelay,
		policy: policy,
		sleep:  sleepCtx,
		log:    logger.Component("lifecycle"),
	}
}

// Handle applies req while holding the chat lock. Errors are store or lock
// failures; Bot API failures only show up in Result.
func (c *Coordinator) Handle(ctx context.Context, req Request) (Result, error) {
	if req.Mode == ModeEcho {
		return c.echo(ctx, req), nil
	}

	unlock, err := c.store.Lock(ctx, req.ChatID)
	if err != nil {
		return Result{}, fmt.Errorf("lifecycle: lock chat %d: %w", req.ChatID, err)
	}
	defer unlock()

	start := time.Now()
	var res Result
	switch req.Mode {
	case ModeReset:
		res, err = c.reset(ctx, req)
	case ModeReplace:
		res, err = c.replace(ctx, req)
	case ModeClearOnly:
		res, err = c.clearOnly(ctx, req)
	default:
		return Result{}, fmt.Errorf("lifecycle: unknown mode %q", req.Mode)
	}
	c.logResult(ctx, req, res, err, logger.Took(start))
	return res, err
}

func (c *Coordinator) reset(ctx context.Context, req Request) (Result, error) {
	var res Result
	visible, err := c.store.Get(ctx, req.ChatID)
	if err != nil {
		return res, err
	}
	res.merge(c.deleteBatch(ctx, req.ChatID, deleteSet(visible)))
	if _, err := c.store.Clear(ctx, req.ChatID); err != nil {
		return res, err
	}

	id, sendErr := c.send(ctx, req.ChatID, menu.Render(menu.Main, req.Context))
	if sendErr != nil {
		res.SendErr = sendErr
		return res, nil
	}
	res.Sent = id
	evicted, err := c.record(ctx, req.ChatID, id, func(wctx context.Context) ([]int, error) {
		return c.store.Append(wctx, req.ChatID, id)
	})
	if err != nil {
		return res, err
	}
	res.merge(c.deleteBatch(ctx, req.ChatID, deleteSet(evicted, id)))
	res.Tracked, err = c.store.Get(ctx, req.ChatID)
	return res, err
}

func (c *Coordinator) replace(ctx context.Context, req Request) (Result, error) {
	var res Result
	id, sendErr := c.send(ctx, req.ChatID, menu.Render(req.Key, req.Context))
	if sendErr != nil {
		res.SendErr = sendErr
		return res, nil
	}
	res.Sent = id

	prior, err := c.record(ctx, req.ChatID, id, func(wctx context.Context) ([]int, error) {
		return c.store.Replace(wctx, req.ChatID, id)
	})
	if err != nil {
		return res, err
	}
	stale := deleteSet(append(prior, req.SourceMessageID), id)
	res.merge(c.deleteBatch(ctx, req.ChatID, stale))
	res.Tracked = []int{id}
	return res, nil
}

func (c *Coordinator) clearOnly(ctx context.Context, req Request) (Result, error) {
	var res Result
	prior, err := c.store.Clear(ctx, req.ChatID)
	if err != nil {
		return res, err
	}
	res.merge(c.deleteBatch(ctx, req.ChatID, deleteSet(append(prior, req.SourceMessageID))))

	id, sendErr := c.send(ctx, req.ChatID, menu.Render(menu.ClearMessages, req.Context))
	if sendErr != nil {
		res.SendErr = sendErr
		res.Tracked = []int{}
		return res, nil
	}
	res.Sent = id
	if c.policy == ClearTrack {
		if _, err := c.record(ctx, req.ChatID, id, func(wctx context.Context) ([]int, error) {
			return c.store.Append(wctx, req.ChatID, id)
		}); err != nil {
			return res, err
		}
	}
	res.Tracked, err = c.store.Get(ctx, req.ChatID)
	return res, err
}

// record runs the store write for a message that is already on screen. The
// write is detached from ctx so a handler deadline cannot drop it; a failure
// leaves the message untracked and is logged as lifecycle.orphaned.
func (c *Coordinator) record(ctx context.Context, chatID int64, id int, write func(context.Context) ([]int, error)) ([]int, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()
	ids, err := write(wctx)
	if err != nil {
		logger.LogEvent(ctx, c.log, slog.LevelError, "lifecycle.orphaned",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", id),
			slog.String("err", err.Error()),
		)
	}
	return ids, err
}

func (c *Coordinator) echo(ctx context.Context, req Request) Result {
	id, err := c.gw.SendMessage(ctx, gateway.Outgoing{ChatID: req.ChatID, Text: menu.Echo(req.Text)})
	res := Result{Sent: id, SendErr: err}
	c.logResult(ctx, req, res, nil, 0)
	return res
}

func (c *Coordinator) send(ctx context.Context, chatID int64, content menu.Content) (int, error) {
	return c.gw.SendMessage(ctx, gateway.Outgoing{
		ChatID:  chatID,
		Text:    content.Text,
		Buttons: content.Buttons,
		Silent:  true,
	})
}

func (c *Coordinator) logResult(ctx context.Context, req Request, res Result, err error, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("mode", string(req.Mode)),
		slog.Int64("chat_id", req.ChatID),
	}
	if req.Mode != ModeEcho && req.Mode != ModeClearOnly {
		attrs = append(attrs, slog.String("menu", string(req.Key)))
	}
	if res.Sent != 0 {
		attrs = append(attrs, slog.Int("message_id", res.Sent))
	}
	if res.SendErr != nil {
		attrs = append(attrs, slog.String("cause", "send_failed"))
	}
	if len(res.Deleted) > 0 {
		preview, _ := logger.SummarizeIDs(res.Deleted, 10)
		attrs = append(attrs, slog.String("deleted", preview))
	}
	if len(res.Failed) > 0 {
		preview, _ := logger.SummarizeIDs(res.Failed, 10)
		attrs = append(attrs, slog.String("delete_failed", preview))
	}
	if res.Tracked != nil {
		attrs = append(attrs, slog.Any("tracked", res.Tracked))
	}
	if took > 0 {
		attrs = append(attrs, slog.Duration("duration", took))
	}

	level := slog.LevelInfo
	switch {
	case err != nil:
		level = slog.LevelError
		attrs = append(attrs, slog.String("err", err.Error()))
	case res.SendErr != nil || len(res.Failed) > 0:
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, c.log, level, "lifecycle."+string(req.Mode), attrs...)
}
