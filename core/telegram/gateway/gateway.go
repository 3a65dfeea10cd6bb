// Package gateway performs outbound Bot API calls and reports each call's outcome.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/keyboard"
	"github.com/m3rciful/menubot/core/telegram/menu"
	"github.com/m3rciful/menubot/core/telegram/netutil"
)

// DefaultCallTimeout bounds one Bot API call.
const DefaultCallTimeout = 10 * time.Second

const (
	MethodSendMessage    = "sendMessage"
	MethodDeleteMessage  = "deleteMessage"
	MethodAnswerCallback = "answerCallbackQuery"
	MethodGetChat        = "getChat"
	MethodSetCommands    = "setMyCommands"
	MethodSetWebhook     = "setWebhook"
	MethodDeleteWebhook  = "deleteWebhook"
	MethodGetWebhookInfo = "getWebhookInfo"
)

// ErrCallTimeout is returned when a call exceeds the bounded wait.
var ErrCallTimeout = netutil.ErrCallTimeout

// Outgoing is one message to send.
type Outgoing struct {
	ChatID  int64
	Text    string
	Buttons []menu.Button
	// Silent sends without a notification sound.
	Silent bool
}

// Options configures a Gateway.
type Options struct {
	Token       string
	APIURL      string
	Client      *http.Client
	CallTimeout time.Duration
}

// Gateway wraps a telebot Bot. It never retries.
type Gateway struct {
	bot     *tele.Bot
	timeout time.Duration
	seq     atomic.Uint64
	log     *slog.Logger
}

// New builds an offline telebot Bot: no getMe call happens at construction.
func New(opts Options) (*Gateway, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("gateway: empty token")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   opts.Token,
		URL:     opts.APIURL,
		Client:  opts.Client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: bot init: %w", err)
	}
	return NewWithBot(bot, opts.CallTimeout), nil
}

// NewWithBot wraps an existing bot.
func NewWithBot(bot *tele.Bot, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Gateway{bot: bot, timeout: timeout, log: logger.Component("tg.gateway")}
}

// Bot exposes the underlying telebot instance for pollers.
func (g *Gateway) Bot() *tele.Bot { return g.bot }

// SendMessage sends Markdown text with an optional inline keyboard and returns the new message id.
func (g *Gateway) SendMessage(ctx context.Context, out Outgoing) (int, error) {
	opts := &tele.SendOptions{
		ParseMode:           tele.ModeMarkdown,
		DisableNotification: out.Silent,
		ReplyMarkup:         keyboard.Inline(out.Buttons),
	}
	var id int
	err := g.call(ctx, MethodSendMessage, out.ChatID, func() error {
		msg, err := g.bot.Send(tele.ChatID(out.ChatID), out.Text, opts)
		if err != nil {
			return err
		}
		id = msg.ID
		return nil
	}, slog.Bool("silent", out.Silent))
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteMessage removes one message.
func (g *Gateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ref := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return g.call(ctx, MethodDeleteMessage, chatID, func() error {
		return g.bot.Delete(ref)
	}, slog.Int("message_id", messageID))
}

// AnswerCallback stops the loading indicator on a pressed button.
func (g *Gateway) AnswerCallback(ctx context.Context, token string) error {
	return g.call(ctx, MethodAnswerCallback, 0, func() error {
		return g.bot.Respond(&tele.Callback{ID: token})
	})
}

// ChatInfo fetches chat metadata for diagnostics.
func (g *Gateway) ChatInfo(ctx context.Context, chatID int64) (*tele.Chat, error) {
	var chat *tele.Chat
	err := g.call(ctx, MethodGetChat, chatID, func() error {
		c, err := g.bot.ChatByID(chatID)
		chat = c
		return err
	})
	return chat, err
}

// SetCommands publishes the bot command list.
func (g *Gateway) SetCommands(ctx context.Context, cmds []tele.Command) error {
	return g.call(ctx, MethodSetCommands, 0, func() error {
		return g.bot.SetCommands(cmds)
	})
}

// SetWebhook registers publicURL with an optional secret token.
func (g *Gateway) SetWebhook(ctx context.Context, publicURL, secret string, dropPending bool) error {
	wh := &tele.Webhook{
		Endpoint:    &tele.WebhookEndpoint{PublicURL: publicURL},
		SecretToken: secret,
		DropUpdates: dropPending,
	}
	return g.call(ctx, MethodSetWebhook, 0, func() error {
		return g.bot.SetWebhook(wh)
	}, slog.String("public_url", publicURL))
}

// RemoveWebhook unregisters the webhook so getUpdates can be used.
func (g *Gateway) RemoveWebhook(ctx context.Context, dropPending bool) error {
	return g.call(ctx, MethodDeleteWebhook, 0, func() error {
		return g.bot.RemoveWebhook(dropPending)
	})
}

// WebhookInfo returns the current webhook registration.
func (g *Gateway) WebhookInfo(ctx context.Context) (*tele.Webhook, error) {
	var wh *tele.Webhook
	err := g.call(ctx, MethodGetWebhookInfo, 0, func() error {
		w, err := g.bot.Webhook()
		wh = w
		return err
	})
	return wh, err
}

// call runs fn with a bounded wait. A call that outlives the bound keeps
// running in the background and its late result is logged.
func (g *Gateway) call(ctx context.Context, method string, chatID int64, fn func() error, extra ...slog.Attr) error {
	seq := g.seq.Add(1)
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("gateway: panic in %s: %v", method, r)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = ErrCallTimeout
		go g.awaitLate(context.WithoutCancel(ctx), seq, method, chatID, start, done)
	}
	g.logCall(ctx, seq, method, chatID, err, time.Since(start), extra...)
	return err
}

func (g *Gateway) awaitLate(ctx context.Context, seq uint64, method string, chatID int64, start time.Time, done <-chan error) {
	err := <-done
	attrs := []slog.Attr{
		slog.Uint64("seq", seq),
		slog.String("method", method),
		slog.String("outcome", netutil.Outcome(err)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	logger.LogEvent(ctx, g.log, slog.LevelWarn, "gateway.call.late", attrs...)
}

func (g *Gateway) logCall(ctx context.Context, seq uint64, method string, chatID int64, err error, elapsed time.Duration, extra ...slog.Attr) {
	outcome := netutil.Outcome(err)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Uint64("seq", seq),
		slog.String("method", method),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	attrs = append(attrs, extra...)

	level := slog.LevelInfo
	switch outcome {
	case logger.OutcomeAPIRejected:
		level = slog.LevelWarn
		attrs = append(attrs, slog.Int("err_code", netutil.HTTPStatus(err)))
	case logger.OutcomeTransportError:
		level = slog.LevelError
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.RedactError(err)),
			slog.String("err_kind", netutil.Kind(err)),
		)
	}
	logger.LogEvent(ctx, g.log, level, "gateway.call", attrs...)
}
