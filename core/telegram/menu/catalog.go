// Package menu renders the bot's navigation screens. Rendering is pure: the
// same key and context always yield the same content.
package menu

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/menubot/core/telegram/format"
)

// Key names a navigation target.
type Key string

const (
	Main          Key = "main"
	About         Key = "about"
	Features      Key = "features"
	Stats         Key = "stats"
	Help          Key = "help"
	ClearMessages Key = "clearMessages"
	Unknown       Key = "unknown"
)

// legacyMain is the callback data older keyboards used for "back to menu".
const legacyMain = "menu"

// Keys lists every renderable key in catalog order.
var Keys = []Key{Main, About, Features, Stats, Help, ClearMessages, Unknown}

// Button is one inline button pointing at another menu.
type Button struct {
	Label  string
	Target Key
}

// Content is a rendered screen. Text is Telegram Markdown (v1).
type Content struct {
	Text    string
	Buttons []Button
}

// Context carries the dynamic values some screens print.
type Context struct {
	Now      time.Time
	ChatID   int64
	UserName string
	// Data is the raw callback data, shown by the unknown screen.
	Data    string
	Version string
}

const (
	labelBack    = "🔙 Back to menu"
	labelRefresh = "🔄 Refresh"
	defaultUser  = "there"
)

var backButton = Button{Label: labelBack, Target: Main}

// ParseKey resolves callback data to a known key. The legacy "menu" data maps to Main.
func ParseKey(data string) (Key, bool) {
	data = strings.TrimSpace(data)
	if data == legacyMain {
		return Main, true
	}
	for _, k := range Keys {
		if k != Unknown && string(k) == data {
			return k, true
		}
	}
	return Unknown, false
}

// Render returns the content for key. Keys outside the catalog render as Unknown.
func Render(key Key, ctx Context) Content {
	switch key {
	case Main:
		return renderMain(ctx)
	case About:
		return renderAbout(ctx)
	case Features:
		return Content{
			Text: format.Bold("Features 🛠️") + "\n\n" +
				"- Menu navigation with inline buttons\n" +
				"- Webhook delivery with secret verification\n" +
				"- Self-cleaning chat: old menus are removed\n" +
				"- Health endpoint for monitoring\n",
			Buttons: []Button{backButton},
		}
	case Stats:
		return renderStats(ctx)
	case Help:
		return Content{
			Text: format.Bold("Help ❓") + "\n\n" +
				"Available commands:\n" +
				"/start - start the bot\n" +
				"/menu - show the main menu\n" +
				"/clean - remove bot messages from this chat\n\n" +
				"Use the buttons under a message to navigate.",
			Buttons: []Button{backButton},
		}
	case ClearMessages:
		return Content{
			Text:    "🧹 Chat cleaned. Send /menu to open the menu again.",
			Buttons: []Button{backButton},
		}
	default:
		return renderUnknown(ctx)
	}
}

func renderMain(ctx Context) Content {
	return Content{
		Text: format.Bold(fmt.Sprintf("Welcome, %s! 👋", displayName(ctx.UserName))) + "\n\n" +
			"This is the main menu.\n" +
			"Pick a section using the buttons below.",
		Buttons: []Button{
			{Label: "📋 About", Target: About},
			{Label: "🛠️ Features", Target: Features},
			{Label: "📊 Stats", Target: Stats},
			{Label: "❓ Help", Target: Help},
			{Label: "🧹 Clean chat", Target: ClearMessages},
		},
	}
}

func renderAbout(ctx Context) Content {
	version := ctx.Version
	if version == "" {
		version = "dev"
	}
	return Content{
		Text: format.Bold("About 🚀") + "\n\n" +
			"A Telegram bot that keeps the chat tidy: every screen replaces the previous one.\n\n" +
			"Version: " + format.EscapeMarkdown(version) + "\n" +
			"Transport: webhook",
		Buttons: []Button{backButton},
	}
}

func renderStats(ctx Context) Content {
	return Content{
		Text: format.Bold("Stats 📊") + "\n\n" +
			"🕒 Time: " + ctx.Now.UTC().Format(time.RFC3339) + "\n" +
			"👤 User: " + displayName(ctx.UserName) + "\n" +
			"🆔 Chat ID: " + strconv.FormatInt(ctx.ChatID, 10) + "\n" +
			"🌐 Webhook: active\n",
		Buttons: []Button{
			{Label: labelRefresh, Target: Stats},
			backButton,
		},
	}
}

func renderUnknown(ctx Context) Content {
	text := format.Bold("Unknown action 🤔") + "\n\n"
	if data := strings.TrimSpace(ctx.Data); data != "" {
		text += "Button data: " + format.EscapeMarkdown(data) + "\n"
	}
	text += "This button is no longer supported."
	return Content{Text: text, Buttons: []Button{backButton}}
}

// Echo renders the untracked reply to free text.
func Echo(text string) string {
	return "You said: " + format.EscapeMarkdown(text)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultUser
	}
	return format.EscapeMarkdown(name)
}
