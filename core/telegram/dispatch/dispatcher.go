// Package dispatch turns inbound updates into lifecycle requests.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/gateway"
	"github.com/m3rciful/menubot/core/telegram/lifecycle"
	"github.com/m3rciful/menubot/core/telegram/menu"
	"github.com/m3rciful/menubot/core/telegram/sender"
)

// HandlerFunc processes one update. A non-nil error means the update could
// not be processed at all, not that a Bot API call failed.
type HandlerFunc func(ctx context.Context, upd tele.Update) error

// Middleware wraps a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// Chain applies mws so that the first one runs outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Coordinator applies lifecycle requests.
type Coordinator interface {
	Handle(ctx context.Context, req lifecycle.Request) (lifecycle.Result, error)
}

// API is the side-channel Bot API surface the dispatcher uses directly.
type API interface {
	AnswerCallback(ctx context.Context, token string) error
	ChatInfo(ctx context.Context, chatID int64) (*tele.Chat, error)
}

// Async runs fire-and-forget calls; *sender.Dispatcher satisfies it.
type Async interface {
	Enqueue(ctx context.Context, action, endpoint string, run func(context.Context) error) error
}

// Options configures a Dispatcher.
type Options struct {
	Registry *Registry
	// Async runs acknowledgements and diagnostics. Nil runs them inline.
	Async Async
	// ChatInfo enables a getChat diagnostic per event.
	ChatInfo bool
	Version  string
	Now      func() time.Time
}

// Dispatcher routes events to the coordinator.
type Dispatcher struct {
	coord    Coordinator
	api      API
	registry *Registry
	async    Async
	chatInfo bool
	version  string
	now      func() time.Time
	log      *slog.Logger
}

// New builds a Dispatcher. A nil registry uses DefaultRegistry.
func New(coord Coordinator, api API, opts Options) *Dispatcher {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		coord:    coord,
		api:      api,
		registry: opts.Registry,
		async:    opts.Async,
		chatInfo: opts.ChatInfo,
		version:  opts.Version,
		now:      opts.Now,
		log:      logger.Component("tg"),
	}
}

// Handle processes one update. Every callback query is acknowledged,
// whatever happens to the event afterwards.
func (d *Dispatcher) Handle(ctx context.Context, upd tele.Update) error {
	start := time.Now()
	if cb := upd.Callback; cb != nil && cb.ID != "" {
		d.Acknowledge(ctx, cb.ID)
	}

	ev, ok := FromUpdate(upd)
	if !ok {
		logger.LogEvent(ctx, d.log, slog.LevelDebug, "update.ignored",
			slog.String("kind", UpdateKind(upd)),
		)
		return nil
	}
	if d.chatInfo {
		d.diagnoseChat(ctx, ev.Chat())
	}

	req, handler := d.route(ev)
	ctx = logger.WithHandler(ctx, handler)
	res, err := d.coord.Handle(ctx, req)
	d.logSummary(ctx, handler, req, res, err, time.Since(start))
	return err
}

// Acknowledge answers a callback query without blocking the caller.
func (d *Dispatcher) Acknowledge(ctx context.Context, token string) {
	d.fire(ctx, gateway.MethodAnswerCallback, func(jobCtx context.Context) error {
		return d.api.AnswerCallback(jobCtx, token)
	})
}

func (d *Dispatcher) route(ev Event) (lifecycle.Request, string) {
	mctx := menu.Context{Now: d.now(), ChatID: ev.Chat(), Version: d.version}
	switch e := ev.(type) {
	case TextCommand:
		mctx.UserName = e.UserName
		req := lifecycle.Request{ChatID: e.ChatID, Context: mctx}
		if name, cmd, ok := d.registry.LookupCommand(e.Text); ok {
			req.Mode = cmd.Mode
			req.Key = cmd.Menu
			return req, "command." + normalizeHandlerName(name)
		}
		req.Mode = lifecycle.ModeEcho
		req.Text = e.Text
		return req, "text.echo"
	case ButtonPress:
		mctx.UserName = e.UserName
		mctx.Data = e.Data
		req := lifecycle.Request{
			ChatID:          e.ChatID,
			Context:         mctx,
			SourceMessageID: e.SourceMessageID,
		}
		key, _ := menu.ParseKey(e.Data)
		req.Key = key
		req.Mode = lifecycle.ModeReplace
		if key == menu.ClearMessages {
			req.Mode = lifecycle.ModeClearOnly
		}
		return req, "callback." + normalizeHandlerName(string(key))
	}
	return lifecycle.Request{}, "unknown"
}

func (d *Dispatcher) diagnoseChat(ctx context.Context, chatID int64) {
	d.fire(ctx, gateway.MethodGetChat, func(jobCtx context.Context) error {
		chat, err := d.api.ChatInfo(jobCtx, chatID)
		if err != nil {
			return err
		}
		if chat != nil {
			logger.LogEvent(jobCtx, d.log, slog.LevelDebug, "chat.info",
				slog.Int64("chat_id", chat.ID),
				slog.String("chat_type", string(chat.Type)),
			)
		}
		return nil
	})
}

// fire hands run to the async sender, or runs it inline when there is none
// or it refuses the job.
func (d *Dispatcher) fire(ctx context.Context, method string, run func(context.Context) error) {
	if d.async != nil {
		err := d.async.Enqueue(ctx, method, method, run)
		if err == nil {
			return
		}
		if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
			logger.LogEvent(ctx, d.log, slog.LevelWarn, "queue.reject",
				slog.String("method", method),
				slog.String("err", err.Error()),
			)
			return
		}
		logger.LogEvent(ctx, d.log, slog.LevelWarn, "queue.fallback",
			slog.String("method", method),
			slog.String("err", err.Error()),
		)
	}
	// Failures are already logged by the gateway.
	_ = run(context.WithoutCancel(ctx))
}
