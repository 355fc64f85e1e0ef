package telegram

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps slash commands and callback keys to handlers. Handlers
// register during wiring; lookups happen on every update.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler
// answers with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func skipRegistration(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}

// RegisterCommand adds cmd under name, which must start with "/". Invalid
// and duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		skipRegistration("register.command.skip", slog.String("op", name), slog.String("cause", "invalid"))
		return
	case !strings.HasPrefix(name, "/") || len(name) == 1:
		skipRegistration("register.command.skip", slog.String("op", name), slog.String("cause", "no_slash_prefix"))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		skipRegistration("register.command.duplicate", slog.String("op", name))
		return
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases["/"+strings.TrimPrefix(alias, "/")] = name
	}
}

// ListCommands returns the commands sorted by name, without the leading
// slash as the Telegram menu expects. visibleOnly drops hidden and admin
// commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name[1:], Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return cmp.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves message text such as "/set@bot 42" to the
// registered command name. Text without a leading slash never matches.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", commands.Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback maps a callback unique key to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		skipRegistration("register.callback.skip", slog.String("cb_key", key))
		return fmt.Errorf("invalid callback registration %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		skipRegistration("register.callback.duplicate", slog.String("cb_key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// CallbackNotFound returns the handler for unregistered callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.notFound
}

// InitBotCommands publishes the visible commands as the bot menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
