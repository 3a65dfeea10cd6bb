package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseData(t *testing.T) {
	cases := []struct {
		raw, key, payload string
	}{
		{"about", "about", ""},
		{"\fstats|refresh", "stats", "refresh"},
		{"\fmain", "main", ""},
		{" help ", "help", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		k, p := ParseData(tc.raw)
		assert.Equal(t, tc.key, k, tc.raw)
		assert.Equal(t, tc.payload, p, tc.raw)
	}
}

func TestKeyAndPayload(t *testing.T) {
	assert.Empty(t, Key(nil))
	assert.Empty(t, Payload(nil))
	assert.Equal(t, "about", Key(&tele.Callback{Data: "about"}))
	assert.Equal(t, "u", Key(&tele.Callback{Unique: "u", Data: "\fu|x"}))
	assert.Equal(t, "x", Payload(&tele.Callback{Data: "\fu|x"}))
}
