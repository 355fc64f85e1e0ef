// Package bot maps Telegram updates onto the onboarding, review and broadcast
// services and renders their results.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/m3rciful/membergate/core/logger"
	tg "github.com/m3rciful/membergate/core/telegram"
	"github.com/m3rciful/membergate/core/telegram/commands"
	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/core/telegram/router"
	"github.com/m3rciful/membergate/internal/broadcast"
	"github.com/m3rciful/membergate/internal/onboarding"
	"github.com/m3rciful/membergate/internal/present"
	"github.com/m3rciful/membergate/internal/review"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot used outside the current update.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Forward(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// Callback unique keys.
const (
	CallbackApprove        = "approve"
	CallbackReject         = "reject"
	CallbackView           = "view"
	CallbackSetField       = "setfield"
	CallbackProfileRefresh = "profile_refresh"
	CallbackProfileStats   = "profile_stats"
)

// Deps are the collaborators of Handlers.
type Deps struct {
	API          API
	Presentation present.Config
	Onboarding   *onboarding.Service
	Review       *review.Service
	Dispatcher   *broadcast.Dispatcher
	Broadcasts   *broadcast.Session
	// Sleep paces animations; nil uses present.SleepContext.
	Sleep present.Sleeper
}

// Handlers holds the Telegram handlers of the membership gate.
type Handlers struct {
	api        API
	pres       present.Config
	tmpl       present.Templates
	onboarding *onboarding.Service
	review     *review.Service
	dispatcher *broadcast.Dispatcher
	broadcasts *broadcast.Session
	sleep      present.Sleeper

	mu   sync.RWMutex
	root context.Context
}

// New constructs Handlers.
func New(d Deps) *Handlers {
	sleep := d.Sleep
	if sleep == nil {
		sleep = present.SleepContext
	}
	return &Handlers{
		api:        d.API,
		pres:       d.Presentation,
		tmpl:       d.Presentation.Templates(),
		onboarding: d.Onboarding,
		review:     d.Review,
		dispatcher: d.Dispatcher,
		broadcasts: d.Broadcasts,
		sleep:      sleep,
		root:       context.Background(),
	}
}

// Bind ties long-running handler work (broadcast runs) to the lifetime of ctx.
func (h *Handlers) Bind(ctx context.Context) {
	h.mu.Lock()
	h.root = ctx
	h.mu.Unlock()
}

// detach returns a context carrying ctx's values that is cancelled when the
// bound root context ends.
func (h *Handlers) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	h.mu.RLock()
	root := h.root
	h.mu.RUnlock()
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(root, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Register adds commands and callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":     {Handler: h.handleStart, Description: "Start verification"},
		"/profile":   {Handler: h.handleProfile, Description: "View your member profile"},
		"/help":      {Handler: h.handleHelp, Description: "Show help"},
		"/admin":     {Handler: h.handleAdmin, Description: "Admin panel", AdminOnly: true},
		"/users":     {Handler: h.handleUsers, Description: "List all users", AdminOnly: true},
		"/pending":   {Handler: h.handlePending, Description: "List pending users", AdminOnly: true},
		"/broadcast": {Handler: h.handleBroadcast, Description: "Broadcast to members", AdminOnly: true},
		"/set":       {Handler: h.handleSet, Description: "Edit a member", AdminOnly: true},
		"/stats":     {Handler: h.handleStats, Description: "Member statistics", AdminOnly: true},
	}
	for name, cmd := range cmds {
		reg.RegisterCommand(name, cmd)
	}

	cbs := map[string]tele.HandlerFunc{
		CallbackApprove:        h.handleDecision(true),
		CallbackReject:         h.handleDecision(false),
		CallbackView:           h.handleView,
		CallbackSetField:       h.handleSetField,
		CallbackProfileRefresh: h.handleProfileRefresh,
		CallbackProfileStats:   h.handleProfileStats,
	}
	var errs []error
	for key, fn := range cbs {
		errs = append(errs, reg.RegisterCallback(key, fn))
	}
	return errors.Join(errs...)
}

// Stages is the message pipeline in priority order.
func (h *Handlers) Stages() []router.Stage {
	return []router.Stage{
		{Name: "broadcast_capture", Handle: h.captureBroadcast},
		{Name: "field_edit", Handle: h.applyFieldEdit},
		{Name: "captcha", Handle: h.answerCaptcha},
	}
}

// MessageOptions are the fallbacks for messages nothing consumed.
func (h *Handlers) MessageOptions() router.MessageOptions {
	return router.MessageOptions{UnknownText: h.handleUnknownText}
}

// AccessDenied replies to non-admins; used by the admin-only middleware.
func (h *Handlers) AccessDenied(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Administrator access required", ShowAlert: true})
	}
	return helpers.SendMDV2(c, h.tmpl.AccessDenied())
}

// fail answers with the generic failure text and passes err on for the
// handler summary.
func (h *Handlers) fail(c tele.Context, err error) error {
	ctx := helpers.BuildContext(c)
	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Something went wrong"})
	}
	if sendErr := helpers.SendMDV2(c, h.tmpl.Failure()); sendErr != nil {
		logger.Warn(ctx, "tg", "reply.failed", slog.Any("err", sendErr))
	}
	return err
}
