package menu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsTotal(t *testing.T) {
	ctx := Context{Now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), ChatID: 42, UserName: "Ann"}
	for _, k := range append(Keys, Key("bogus")) {
		c := Render(k, ctx)
		assert.NotEmpty(t, c.Text, "key %s", k)
		require.NotEmpty(t, c.Buttons, "key %s", k)
		if k == Main {
			continue
		}
		back := c.Buttons[len(c.Buttons)-1]
		assert.Equal(t, Main, back.Target, "key %s must end with back", k)
	}
}

func TestRenderDeterministic(t *testing.T) {
	ctx := Context{Now: time.Unix(1700000000, 0), ChatID: 7, UserName: "Bob", Data: "x"}
	for _, k := range Keys {
		assert.Equal(t, Render(k, ctx), Render(k, ctx), "key %s", k)
	}
}

func TestRenderMainButtons(t *testing.T) {
	c := Render(Main, Context{UserName: "Ann"})
	targets := make([]Key, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		targets = append(targets, b.Target)
	}
	assert.Equal(t, []Key{About, Features, Stats, Help, ClearMessages}, targets)
	assert.Contains(t, c.Text, "Welcome, Ann!")
}

func TestRenderStats(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	c := Render(Stats, Context{Now: now, ChatID: -100123, UserName: "ann_b"})
	assert.Contains(t, c.Text, "2025-03-01T12:30:00Z")
	assert.Contains(t, c.Text, "-100123")
	assert.Contains(t, c.Text, `ann\_b`)
	require.Len(t, c.Buttons, 2)
	assert.Equal(t, Button{Label: labelRefresh, Target: Stats}, c.Buttons[0])
	assert.Equal(t, Main, c.Buttons[1].Target)
}

func TestRenderUnknownShowsData(t *testing.T) {
	c := Render(Unknown, Context{Data: "old_action"})
	assert.Contains(t, c.Text, `old\_action`)
	assert.Equal(t, Render(Key("whatever"), Context{Data: "old_action"}), c)
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		data string
		want Key
		ok   bool
	}{
		{"main", Main, true},
		{"menu", Main, true},
		{"about", About, true},
		{"features", Features, true},
		{"stats", Stats, true},
		{"help", Help, true},
		{"clearMessages", ClearMessages, true},
		{" help ", Help, true},
		{"unknown", Unknown, false},
		{"", Unknown, false},
		{"About", Unknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseKey(tc.data)
		assert.Equal(t, tc.want, got, tc.data)
		assert.Equal(t, tc.ok, ok, tc.data)
	}
}

func TestEcho(t *testing.T) {
	assert.Equal(t, "You said: hello", Echo("hello"))
	assert.Equal(t, `You said: \*hi\*`, Echo("*hi*"))
}
