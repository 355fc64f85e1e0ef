// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes an inline button. A non-empty URL makes it a link
// button; otherwise Unique and Data form the callback.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func (b InlineBtn) build(markup *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *markup.URL(b.Text, b.URL).Inline()
	}
	return *markup.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtonsRows lays the rows out as given, skipping empty ones.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			line = append(line, btn.build(markup))
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// InlineButtonsNPerRow wraps buttons into rows of at most n.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	n = max(n, 1)
	rows := make([][]InlineBtn, 0, (len(buttons)+n-1)/n)
	for len(buttons) > n {
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return InlineButtonsRows(append(rows, buttons)...)
}
