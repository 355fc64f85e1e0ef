package router

import (
	"time"

	tg "github.com/m3rciful/membergate/core/telegram"
	"github.com/m3rciful/membergate/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Stage is one step of the message pipeline. Handle reports whether it
// consumed the update; the first stage that does ends routing.
type Stage struct {
	Name   string
	Handle func(c tele.Context) (bool, error)
}

// MessageOptions controls fallback behaviour for unconsumed messages.
type MessageOptions struct {
	// UnknownText handles text nobody consumed and that is not a known command.
	UnknownText tele.HandlerFunc
	// UnknownMedia handles non-text messages nobody consumed.
	UnknownMedia tele.HandlerFunc
}

// MediaEndpoints lists the non-text message endpoints routed through the pipeline.
var MediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnDocument,
	tele.OnAudio,
	tele.OnVoice,
	tele.OnAnimation,
	tele.OnVideoNote,
	tele.OnSticker,
	tele.OnLocation,
	tele.OnContact,
	tele.OnPoll,
}

// MessageRoutes builds the text and media handlers. Stages run in order for
// every message; text not consumed by a stage falls back to command lookup
// (aliases, "/cmd@bot") and then to UnknownText.
func MessageRoutes(stages []Stage, reg *tg.Registry, opts MessageOptions) []tg.Route {
	runStages := func(c tele.Context, start time.Time) (bool, error) {
		for _, st := range stages {
			if st.Handle == nil {
				continue
			}
			handled, err := st.Handle(c)
			if handled || err != nil {
				newSummary("stage."+handlerName(st.Name), start).log(c, "", err)
				return true, err
			}
		}
		return false, nil
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if handled, err := runStages(c, start); handled {
			return err
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return newSummary(handlerName(key), start).run(c, func() error { return cmd.Handler(c) })
			}
		}

		if opts.UnknownText != nil {
			return newSummary("unknown_text", start).run(c, func() error { return opts.UnknownText(c) })
		}
		newSummary("unknown_text", start).skip(c)
		return nil
	}

	media := func(c tele.Context) error {
		start := time.Now()
		if handled, err := runStages(c, start); handled {
			return err
		}
		if opts.UnknownMedia != nil {
			return newSummary("unknown_media", start).run(c, func() error { return opts.UnknownMedia(c) })
		}
		newSummary("unknown_media", start).skip(c)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: wrap(text)}}
	mediaHandler := wrap(media)
	for _, ep := range MediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: mediaHandler})
	}
	return routes
}
