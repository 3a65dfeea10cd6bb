package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/menubot/core/telegram/lifecycle"
	"github.com/m3rciful/menubot/core/telegram/menu"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in, name, args string
		ok             bool
	}{
		{"/start", "/start", "", true},
		{"/start@menu_bot", "/start", "", true},
		{"/START@menu_bot payload x", "/start", "payload x", true},
		{"  /clean  ", "/clean", "", true},
		{"hello", "", "", false},
		{"/", "", "", false},
		{"/@bot", "", "", false},
	}
	for _, tc := range cases {
		name, args, ok := Parse(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.args, args, tc.in)
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, lifecycle.ModeReset, d["/start"].Mode)
	assert.Equal(t, lifecycle.ModeReset, d["/menu"].Mode)
	assert.Equal(t, menu.Main, d["/menu"].Menu)
	assert.Equal(t, lifecycle.ModeClearOnly, d["/clean"].Mode)
}
