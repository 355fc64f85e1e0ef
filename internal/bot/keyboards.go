package bot

import (
	"strconv"

	"github.com/m3rciful/membergate/core/telegram/keyboard"
	"github.com/m3rciful/membergate/internal/member"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) supportRow() []keyboard.InlineBtn {
	if h.pres.SupportURL == "" {
		return nil
	}
	return []keyboard.InlineBtn{{Text: "💬 Support", URL: h.pres.SupportURL}}
}

func (h *Handlers) profileKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "🔄 Refresh", Unique: CallbackProfileRefresh},
			{Text: "📊 Statistics", Unique: CallbackProfileStats},
		},
		h.supportRow(),
	)
}

func decisionRow(id int64) []keyboard.InlineBtn {
	data := strconv.FormatInt(id, 10)
	return []keyboard.InlineBtn{
		{Text: "✅ Approve", Unique: CallbackApprove, Data: data},
		{Text: "❌ Reject", Unique: CallbackReject, Data: data},
	}
}

func applicantKeyboard(id int64) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		decisionRow(id),
		[]keyboard.InlineBtn{{Text: "👁 View Profile", Unique: CallbackView, Data: strconv.FormatInt(id, 10)}},
	)
}

func pendingKeyboard(id int64) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(decisionRow(id))
}

func fieldKeyboard(id int64) *tele.ReplyMarkup {
	prefix := strconv.FormatInt(id, 10) + ":"
	fields := member.Fields()
	btns := make([]keyboard.InlineBtn, 0, len(fields))
	for _, f := range fields {
		btns = append(btns, keyboard.InlineBtn{Text: f.Label(), Unique: CallbackSetField, Data: prefix + f.Key()})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

func (h *Handlers) supportKeyboard() *tele.ReplyMarkup {
	row := h.supportRow()
	if row == nil {
		return nil
	}
	return keyboard.InlineButtonsRows(row)
}
