package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Escaper = newEscaper("_*`[")
	mdV2Escaper = newEscaper("_*[]()~`>#+-=|{}.!\\")
)

func newEscaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, len(specials)*2)
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Escaper.Replace(text), nil
	case MarkdownV2:
		return mdV2Escaper.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// V2 escapes text for MarkdownV2 message bodies.
func V2(text string) string {
	return mdV2Escaper.Replace(text)
}

// Code wraps text in an inline code span; only ` and \ need escaping inside it.
func Code(text string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return "`" + r.Replace(text) + "`"
}

// Bold escapes text and wraps it in bold markers.
func Bold(text string) string {
	return "*" + V2(text) + "*"
}

// Link builds an inline link; ) and \ must be escaped in the URL part.
func Link(label, url string) string {
	r := strings.NewReplacer("\\", "\\\\", ")", "\\)")
	return "[" + V2(label) + "](" + r.Replace(url) + ")"
}

// Mention links to a Telegram user by id.
func Mention(label string, userID int64) string {
	return Link(label, fmt.Sprintf("tg://user?id=%d", userID))
}
