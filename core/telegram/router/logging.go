package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/membergate/core/logger"
	tghelpers "github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary emits one "handler.handled" line per routed update.
type summary struct {
	name   string
	start  time.Time
	extras []slog.Attr
}

func newSummary(name string, start time.Time, extras ...slog.Attr) summary {
	return summary{name: name, start: start, extras: extras}
}

// run tags the update with the handler name, calls fn and logs the result.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.name)
	err := fn()
	s.log(c, "", err)
	return err
}

// skip records that no handler took the update.
func (s summary) skip(c tele.Context) {
	s.log(c, "skip", nil)
}

func (s summary) log(c tele.Context, status string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	if status == "" {
		status = outcome
	}
	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(s.start)),
	}, s.extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(tghelpers.WithHandler(c, s.name), logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// handlerName turns "/Set Field" into "set_field".
func handlerName(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(raw, " ", "_"))
}

// deriveErrorCode prefers an error's own Code() and falls back to its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	name := ""
	if errors.As(err, &coded) {
		name = strings.TrimSpace(coded.Code())
	}
	if name == "" {
		typ := fmt.Sprintf("%T", err)
		name = typ[strings.LastIndex(typ, ".")+1:]
	}
	return strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}
