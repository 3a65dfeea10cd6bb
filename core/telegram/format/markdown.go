package format

import "regexp"

var mdV1Specials = regexp.MustCompile("([_*`\\[])")

// EscapeMarkdown escapes characters that Telegram Markdown (v1) treats as entity markers.
func EscapeMarkdown(text string) string {
	return mdV1Specials.ReplaceAllString(text, `\$1`)
}

// Bold wraps already escaped text in a Markdown bold entity.
func Bold(text string) string {
	if text == "" {
		return ""
	}
	return "*" + text + "*"
}
