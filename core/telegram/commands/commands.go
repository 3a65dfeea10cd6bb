// Package commands declares slash commands and parses command text.
package commands

import (
	"strings"

	"github.com/m3rciful/menubot/core/telegram/lifecycle"
	"github.com/m3rciful/menubot/core/telegram/menu"
)

// Command maps a slash command to a lifecycle mode and the menu it shows.
type Command struct {
	Description string
	Mode        lifecycle.Mode
	Menu        menu.Key
	Hidden      bool
	Aliases     []string
}

// Defaults returns the built-in command table.
func Defaults() map[string]Command {
	return map[string]Command{
		"/start": {Description: "Show the main menu", Mode: lifecycle.ModeReset, Menu: menu.Main},
		"/menu":  {Description: "Show the main menu", Mode: lifecycle.ModeReset, Menu: menu.Main},
		"/clean": {Description: "Clear bot messages", Mode: lifecycle.ModeClearOnly, Menu: menu.ClearMessages},
	}
}

// Parse splits "/name@bot args" into the lowercased "/name" and the rest.
// ok is false when text is not a command.
func Parse(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "/" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
