package bot

import (
	"errors"
	"strings"

	"github.com/m3rciful/membergate/core/telegram/callbacks"
	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/review"

	tele "gopkg.in/telebot.v4"
)

// validationErr reports errors caused by admin input rather than the system.
func validationErr(err error) bool {
	return errors.Is(err, member.ErrNotFound) ||
		errors.Is(err, member.ErrUnknownField) ||
		errors.Is(err, member.ErrInvalidValue) ||
		errors.Is(err, review.ErrInvalidTarget)
}

// adminErr renders the common review errors; handled is false for anything else.
func (h *Handlers) adminErr(c tele.Context, err error) (handled bool, reply error) {
	switch {
	case errors.Is(err, review.ErrAccessDenied):
		return true, h.AccessDenied(c)
	case errors.Is(err, member.ErrNotFound):
		return true, helpers.SendMDV2(c, h.tmpl.TargetNotFound())
	case errors.Is(err, review.ErrInvalidTarget):
		return true, helpers.SendMDV2(c, h.tmpl.InvalidTarget())
	}
	return false, nil
}

func (h *Handlers) handleAdmin(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	stats, err := h.review.Stats(ctx, helpers.SenderID(c))
	if err != nil {
		if ok, reply := h.adminErr(c, err); ok {
			return reply
		}
		return h.fail(c, err)
	}
	return helpers.SendMDV2(c, h.tmpl.AdminPanel(stats))
}

func (h *Handlers) handleUsers(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	recs, err := h.review.Users(ctx, helpers.SenderID(c))
	if err != nil {
		if ok, reply := h.adminErr(c, err); ok {
			return reply
		}
		return h.fail(c, err)
	}
	return helpers.SendMDV2(c, h.tmpl.UserList(recs))
}

func (h *Handlers) handlePending(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	recs, err := h.review.Pending(ctx, helpers.SenderID(c))
	if err != nil {
		if ok, reply := h.adminErr(c, err); ok {
			return reply
		}
		return h.fail(c, err)
	}
	if len(recs) == 0 {
		return helpers.SendMDV2(c, h.tmpl.NoPending())
	}
	if err := helpers.SendMDV2(c, h.tmpl.PendingHeader(len(recs))); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := helpers.SendMDV2(c, h.tmpl.PendingEntry(rec), pendingKeyboard(rec.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) handleStats(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	stats, err := h.review.Stats(ctx, helpers.SenderID(c))
	if err != nil {
		if ok, reply := h.adminErr(c, err); ok {
			return reply
		}
		return h.fail(c, err)
	}
	return helpers.SendMDV2(c, h.tmpl.Stats(stats))
}

// commandArg returns the text after the command word.
func commandArg(c tele.Context) string {
	if m := c.Message(); m != nil && m.Payload != "" {
		return strings.TrimSpace(m.Payload)
	}
	_, arg, _ := strings.Cut(strings.TrimSpace(c.Text()), " ")
	return strings.TrimSpace(arg)
}

func (h *Handlers) handleSet(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	actor := helpers.SenderID(c)
	if err := h.review.Authorize(ctx, actor); err != nil {
		return h.AccessDenied(c)
	}
	arg := commandArg(c)
	if arg == "" {
		return helpers.SendMDV2(c, h.tmpl.SetUsage())
	}
	target, err := review.ParseTarget(arg)
	if err != nil {
		return helpers.SendMDV2(c, h.tmpl.InvalidTarget())
	}
	rec, err := h.review.Lookup(ctx, actor, target)
	if err != nil {
		if ok, reply := h.adminErr(c, err); ok {
			return reply
		}
		return h.fail(c, err)
	}
	return helpers.SendMDV2(c, h.tmpl.Manage(rec), fieldKeyboard(rec.ID))
}

func (h *Handlers) handleDecision(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		target, err := callbacks.PayloadInt64(c)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Invalid request"})
		}
		actor := helpers.SenderID(c)
		var rec member.Record
		if approve {
			rec, err = h.review.Approve(ctx, actor, target)
		} else {
			rec, err = h.review.Reject(ctx, actor, target)
		}
		switch {
		case errors.Is(err, review.ErrAccessDenied):
			return h.AccessDenied(c)
		case errors.Is(err, member.ErrNotFound):
			return c.Respond(&tele.CallbackResponse{Text: "User not found", ShowAlert: true})
		case err != nil:
			return h.fail(c, err)
		}

		answer := "❌ Rejected"
		if rec.Approved() {
			answer = "✅ Approved"
		}
		_ = c.Respond(&tele.CallbackResponse{Text: answer})
		return helpers.EditOrSendMDV2(c, h.tmpl.Decided(rec))
	}
}

func (h *Handlers) handleView(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	target, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid request"})
	}
	rec, err := h.review.Lookup(ctx, helpers.SenderID(c), target)
	switch {
	case errors.Is(err, review.ErrAccessDenied):
		return h.AccessDenied(c)
	case errors.Is(err, member.ErrNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "User not found", ShowAlert: true})
	case err != nil:
		return h.fail(c, err)
	}
	markup := fieldKeyboard(rec.ID)
	if !rec.Approved() {
		markup.InlineKeyboard = append(pendingKeyboard(rec.ID).InlineKeyboard, markup.InlineKeyboard...)
	}
	return helpers.SendMDV2(c, h.tmpl.Profile(rec), markup)
}

func (h *Handlers) handleSetField(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	target, key, err := callbacks.PayloadIDKey(c, ":")
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid request"})
	}
	field, err := h.review.SelectField(ctx, helpers.SenderID(c), target, key)
	switch {
	case errors.Is(err, review.ErrAccessDenied):
		return h.AccessDenied(c)
	case validationErr(err):
		return c.Respond(&tele.CallbackResponse{Text: err.Error(), ShowAlert: true})
	case err != nil:
		return h.fail(c, err)
	}
	_ = c.Respond()
	return helpers.SendMDV2(c, h.tmpl.FieldPrompt(field, target))
}

// applyFieldEdit consumes the admin's text as the value of a selected field.
func (h *Handlers) applyFieldEdit(c tele.Context) (bool, error) {
	if c.Message() == nil || c.Text() == "" {
		return false, nil
	}
	ctx := helpers.BuildContext(c)
	edit, ok, err := h.review.ApplyField(ctx, helpers.SenderID(c), c.Text())
	switch {
	case !ok && err == nil:
		return false, nil
	case validationErr(err):
		return true, helpers.SendMDV2(c, h.tmpl.FieldRejected(err))
	case err != nil:
		return true, h.fail(c, err)
	}
	return true, helpers.SendMDV2(c, h.tmpl.FieldUpdated(edit.Target, edit.Field, edit.Value))
}
