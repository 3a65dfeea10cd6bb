package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/telegram/commands"
	"github.com/m3rciful/menubot/core/telegram/gateway"
	"github.com/m3rciful/menubot/core/telegram/lifecycle"
	"github.com/m3rciful/menubot/core/telegram/menu"
	"github.com/m3rciful/menubot/core/telegram/sender"
	"github.com/m3rciful/menubot/core/telegram/session"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeBot struct {
	mu      sync.Mutex
	next    int
	sent    []gateway.Outgoing
	deleted []int
	acks    []string
	chats   []int64
}

func (f *fakeBot) SendMessage(_ context.Context, out gateway.Outgoing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.sent = append(f.sent, out)
	return 1000 + f.next, nil
}

func (f *fakeBot) DeleteMessage(_ context.Context, _ int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBot) AnswerCallback(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, token)
	return nil
}

func (f *fakeBot) ChatInfo(_ context.Context, chatID int64) (*tele.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	return &tele.Chat{ID: chatID, Type: tele.ChatPrivate}, nil
}

type errCoordinator struct{ err error }

func (c errCoordinator) Handle(context.Context, lifecycle.Request) (lifecycle.Result, error) {
	return lifecycle.Result{}, c.err
}

type recordingAsync struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (a *recordingAsync) Enqueue(ctx context.Context, action, _ string, run func(context.Context) error) error {
	a.mu.Lock()
	a.actions = append(a.actions, action)
	a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	return run(ctx)
}

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *fakeBot, *session.MemoryStore) {
	t.Helper()
	bot := &fakeBot{}
	store := session.NewMemoryStore(session.DefaultCapacity)
	coord := lifecycle.NewCoordinator(store, bot, lifecycle.Options{})
	opts.Now = func() time.Time { return fixedNow }
	return New(coord, bot, opts), bot, store
}

func textUpdate(text string) tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{
		ID:     10,
		Text:   text,
		Chat:   &tele.Chat{ID: 42},
		Sender: &tele.User{ID: 7, FirstName: "Ann"},
	}}
}

func callbackUpdate(data string, msgID int) tele.Update {
	return tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb-1",
		Data:    data,
		Sender:  &tele.User{ID: 7, FirstName: "Ann"},
		Message: &tele.Message{ID: msgID, Chat: &tele.Chat{ID: 42}},
	}}
}

func TestStartCommandResetsToMainMenu(t *testing.T) {
	d, bot, store := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("/start@menu_bot")))

	require.Len(t, bot.sent, 1)
	want := menu.Render(menu.Main, menu.Context{Now: fixedNow, ChatID: 42, UserName: "Ann"})
	assert.Equal(t, want.Text, bot.sent[0].Text)
	assert.True(t, bot.sent[0].Silent)
	ids, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1001}, ids)
	assert.Empty(t, bot.acks)
}

func TestMenuCommandAfterButtons(t *testing.T) {
	d, bot, store := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("/start")))
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("about", 1001)))
	require.NoError(t, d.Handle(t.Context(), textUpdate("/menu")))

	assert.ElementsMatch(t, []int{1001, 1002}, bot.deleted)
	ids, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1003}, ids)
}

func TestButtonPressReplacesAndAcknowledges(t *testing.T) {
	d, bot, store := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("/start")))
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("\fabout|x", 1001)))

	assert.Equal(t, []string{"cb-1"}, bot.acks)
	require.Len(t, bot.sent, 2)
	assert.Equal(t, menu.Render(menu.About, menu.Context{}).Text, bot.sent[1].Text)
	assert.Equal(t, []int{1001}, bot.deleted)
	ids, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1002}, ids)
}

func TestUnknownButtonShowsFallback(t *testing.T) {
	d, bot, _ := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("bogus", 500)))

	require.Len(t, bot.sent, 1)
	want := menu.Render(menu.Unknown, menu.Context{Data: "bogus"})
	assert.Equal(t, want.Text, bot.sent[0].Text)
	assert.Equal(t, []int{500}, bot.deleted)
	assert.Equal(t, []string{"cb-1"}, bot.acks)
}

func TestLegacyMenuButtonShowsMain(t *testing.T) {
	d, bot, _ := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("menu", 500)))
	require.Len(t, bot.sent, 1)
	want := menu.Render(menu.Main, menu.Context{UserName: "Ann"})
	assert.Equal(t, want.Text, bot.sent[0].Text)
}

func TestCleanCommandAndButton(t *testing.T) {
	d, bot, store := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("/start")))
	require.NoError(t, d.Handle(t.Context(), textUpdate("/clean")))
	assert.Equal(t, []int{1001}, bot.deleted)
	ids, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1002}, ids)

	require.NoError(t, d.Handle(t.Context(), callbackUpdate("clearMessages", 1002)))
	assert.Equal(t, []int{1001, 1002}, bot.deleted)
	ids, err = store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1003}, ids)
	assert.Equal(t, menu.Render(menu.ClearMessages, menu.Context{}).Text, bot.sent[2].Text)
}

func TestFreeTextEchoes(t *testing.T) {
	d, bot, store := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("hello *world*")))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, menu.Echo("hello *world*"), bot.sent[0].Text)
	assert.False(t, bot.sent[0].Silent)
	ids, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUnknownCommandEchoes(t *testing.T) {
	d, bot, _ := newTestDispatcher(t, Options{})
	require.NoError(t, d.Handle(t.Context(), textUpdate("/nope")))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, menu.Echo("/nope"), bot.sent[0].Text)
}

func TestIgnoredUpdates(t *testing.T) {
	d, bot, _ := newTestDispatcher(t, Options{})
	updates := []tele.Update{
		{ID: 3},
		{ID: 4, EditedMessage: &tele.Message{Text: "x", Chat: &tele.Chat{ID: 1}}},
		{ID: 5, Message: &tele.Message{Chat: &tele.Chat{ID: 1}}},
		{ID: 6, Message: &tele.Message{Text: "hi"}},
	}
	for _, upd := range updates {
		require.NoError(t, d.Handle(t.Context(), upd))
	}
	assert.Empty(t, bot.sent)
	assert.Empty(t, bot.acks)
}

func TestCallbackWithoutMessageIsStillAcknowledged(t *testing.T) {
	d, bot, _ := newTestDispatcher(t, Options{})
	upd := tele.Update{ID: 7, Callback: &tele.Callback{ID: "cb-inline", Data: "about"}}
	require.NoError(t, d.Handle(t.Context(), upd))
	assert.Equal(t, []string{"cb-inline"}, bot.acks)
	assert.Empty(t, bot.sent)
}

func TestAsyncAcknowledgementAndChatInfo(t *testing.T) {
	async := &recordingAsync{}
	d, bot, _ := newTestDispatcher(t, Options{Async: async, ChatInfo: true})
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("help", 9)))
	assert.Equal(t, []string{gateway.MethodAnswerCallback, gateway.MethodGetChat}, async.actions)
	assert.Equal(t, []string{"cb-1"}, bot.acks)
	assert.Equal(t, []int64{42}, bot.chats)
}

func TestAcknowledgementFallsBackInlineWhenQueueFull(t *testing.T) {
	async := &recordingAsync{err: sender.ErrQueueFull}
	d, bot, _ := newTestDispatcher(t, Options{Async: async})
	require.NoError(t, d.Handle(t.Context(), callbackUpdate("help", 9)))
	assert.Equal(t, []string{"cb-1"}, bot.acks)
}

func TestCoordinatorErrorPropagates(t *testing.T) {
	bot := &fakeBot{}
	boom := errors.New("store down")
	d := New(errCoordinator{err: boom}, bot, Options{})
	err := d.Handle(t.Context(), callbackUpdate("about", 1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"cb-1"}, bot.acks)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	list := r.ListCommands(true)
	require.Len(t, list, 3)
	assert.Equal(t, "clean", list[0].Text)
	assert.Equal(t, "menu", list[1].Text)
	assert.Equal(t, "start", list[2].Text)

	assert.Error(t, r.RegisterCommand("/start", commands.Command{Description: "x", Mode: lifecycle.ModeReset}))
	assert.Error(t, r.RegisterCommand("home", commands.Command{Description: "x", Mode: lifecycle.ModeReset}))
	assert.Error(t, r.RegisterCommand("/home", commands.Command{Mode: lifecycle.ModeReset}))

	require.NoError(t, r.RegisterCommand("/home", commands.Command{
		Description: "Home", Mode: lifecycle.ModeReset, Menu: menu.Main, Hidden: true, Aliases: []string{"h"},
	}))
	assert.Len(t, r.ListCommands(true), 3)
	assert.Len(t, r.ListCommands(false), 4)

	name, cmd, ok := r.LookupCommand("/h@bot now")
	require.True(t, ok)
	assert.Equal(t, "/home", name)
	assert.Equal(t, menu.Main, cmd.Menu)

	_, _, ok = r.LookupCommand("plain text")
	assert.False(t, ok)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, upd tele.Update) error {
				order = append(order, name)
				return next(ctx, upd)
			}
		}
	}
	h := Chain(func(context.Context, tele.Update) error {
		order = append(order, "handler")
		return nil
	}, mw("a"), nil, mw("b"))
	require.NoError(t, h(t.Context(), tele.Update{}))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
