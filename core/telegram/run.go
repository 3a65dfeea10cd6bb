package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
	"github.com/m3rciful/menubot/core/telegram/gateway"
	"github.com/m3rciful/menubot/core/telegram/lifecycle"
	"github.com/m3rciful/menubot/core/telegram/middleware"
	tgsender "github.com/m3rciful/menubot/core/telegram/sender"
	"github.com/m3rciful/menubot/core/telegram/session"
	"github.com/m3rciful/menubot/core/telegram/webhook"
)

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config *coreconfig.Config
	// Store defaults to a MemoryStore sized from the config.
	Store session.Store
	// Gateway defaults to one built from the config.
	Gateway  *gateway.Gateway
	Sender   *tgsender.Dispatcher
	Registry *dispatch.Registry
	// Middlewares replaces DefaultMiddlewares when set.
	Middlewares []dispatch.Middleware
	Version     string

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Gateway  *gateway.Gateway
	Sender   *tgsender.Dispatcher
	Registry *dispatch.Registry
	Counters *middleware.Counters
	Handler  dispatch.HandlerFunc
}

// Build wires the update pipeline without starting any transport.
func Build(opts RunOptions) (Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		return Runtime{}, errors.New("telegram: nil config provided")
	}

	gw := opts.Gateway
	if gw == nil {
		var err error
		gw, err = NewGateway(cfg)
		if err != nil {
			return Runtime{}, err
		}
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore(cfg.Session.Capacity)
	}
	snd := opts.Sender
	if snd == nil {
		snd = tgsender.NewDispatcher(tgsender.Options{
			QueueSize:   cfg.Sender.QueueSize,
			Workers:     cfg.Sender.Workers,
			MaxDuration: time.Duration(cfg.Sender.MaxDurationMS) * time.Millisecond,
		})
	}
	reg := opts.Registry
	if reg == nil {
		reg = dispatch.DefaultRegistry()
	}

	coord := lifecycle.NewCoordinator(store, gw, lifecycle.Options{
		DeleteDelay: time.Duration(cfg.Lifecycle.DeleteDelayMS) * time.Millisecond,
		ClearPolicy: lifecycle.ClearPolicy(cfg.Lifecycle.ClearPolicy),
	})
	disp := dispatch.New(coord, gw, dispatch.Options{
		Registry: reg,
		Async:    snd,
		ChatInfo: cfg.Lifecycle.ChatInfo,
		Version:  opts.Version,
	})

	counters := &middleware.Counters{}
	mws := opts.Middlewares
	if mws == nil {
		mws = DefaultMiddlewares(cfg, counters, func(ctx context.Context, upd tele.Update) error {
			if upd.Callback != nil && upd.Callback.ID != "" {
				disp.Acknowledge(ctx, upd.Callback.ID)
			}
			return nil
		})
	}

	return Runtime{
		Gateway:  gw,
		Sender:   snd,
		Registry: reg,
		Counters: counters,
		Handler:  dispatch.Chain(disp.Handle, mws...),
	}, nil
}

// NewGateway builds a gateway from the telegram config section.
func NewGateway(cfg *coreconfig.Config) (*gateway.Gateway, error) {
	callTimeout := time.Duration(cfg.Telegram.CallTimeoutMS) * time.Millisecond
	clientTimeout := callTimeout
	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll {
		clientTimeout += longPollTimeout(cfg)
	}
	return gateway.New(gateway.Options{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		Client:      BuildHTTPClient(clientTimeout),
		CallTimeout: callTimeout,
	})
}

// RunTelegram composes and runs the bot until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	buildStart := time.Now()
	rt, err := Build(opts)
	if err != nil {
		return err
	}
	cfg := opts.Config
	defer rt.Sender.Close()

	if cfg.Telegram.PublishCommands {
		if err := rt.Gateway.SetCommands(ctx, rt.Registry.ListCommands(true)); err != nil {
			logger.TWire.LogAttrs(ctx, slog.LevelError, "register.commands.set_failed",
				slog.String("err", logger.RedactError(err)),
			)
		}
	}

	handlerTimeout := time.Duration(cfg.Webhook.HandlerTimeoutMS) * time.Millisecond
	var serve func(context.Context) error
	switch cfg.Telegram.RunMode {
	case coreconfig.RunModeLongpoll:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Duration("timeout", longPollTimeout(cfg)),
			slog.Duration("duration", logger.RoundMS(time.Since(buildStart))),
		)
		if err := rt.Gateway.RemoveWebhook(ctx, false); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("err", logger.RedactError(err)),
			)
		}
		serve = func(ctx context.Context) error {
			return RunLongPoll(ctx, rt.Gateway.Bot(), rt.Handler, PollOptions{
				Timeout:        longPollTimeout(cfg),
				HandlerTimeout: handlerTimeout,
			})
		}
	default:
		addr := net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port))
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("listen", addr),
			slog.String("path", cfg.Webhook.Path),
			slog.Duration("duration", logger.RoundMS(time.Since(buildStart))),
		)
		if cfg.Webhook.Register {
			if err := rt.Gateway.SetWebhook(ctx, cfg.Webhook.URL, cfg.Webhook.Secret, false); err != nil {
				return fmt.Errorf("telegram: webhook registration failed: %w", err)
			}
		}
		srv := webhook.NewServer(rt.Handler, webhook.Options{
			Path:            cfg.Webhook.Path,
			Secret:          cfg.Webhook.Secret,
			SecretHeader:    cfg.Webhook.SecretHeader,
			Version:         opts.Version,
			TokenConfigured: strings.TrimSpace(cfg.Telegram.Token) != "",
			HandlerTimeout:  handlerTimeout,
			Counters:        rt.Counters,
		})
		serve = func(ctx context.Context) error { return srv.ListenAndServe(ctx, addr) }
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPollTimeout
}
