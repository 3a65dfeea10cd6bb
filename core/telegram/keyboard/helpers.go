package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/telegram/menu"
)

// Inline builds an inline keyboard with one button per row.
// Callback data is the bare target key so it round-trips through ParseKey.
func Inline(buttons []menu.Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	return InlineRows(Chunk(buttons, 1)...)
}

// InlineRows builds an inline keyboard from explicit rows.
func InlineRows(rows ...[]menu.Button) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Label, Data: string(btn.Target)}
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// Chunk splits buttons into rows of up to n buttons; n <= 1 yields one per row.
func Chunk(buttons []menu.Button, n int) [][]menu.Button {
	if n <= 1 {
		n = 1
	}
	var rows [][]menu.Button
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}
