package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/membergate/core/buildinfo"
	coreconfig "github.com/m3rciful/membergate/core/config"
)

var (
	// L is the root logger; prefer the component helpers below.
	L *slog.Logger
	// TWire logs command and callback wiring.
	TWire *slog.Logger

	level     slog.LevelVar
	debugGate sampler
	debugAll  bool

	components = struct {
		sync.Mutex
		byName map[string]*slog.Logger
	}{byName: map[string]*slog.Logger{}}

	outputs struct {
		sync.Mutex
		once  sync.Once
		done  bool
		sinks []*sink
		files []io.Closer
	}
)

func init() {
	// Loggers discard until InitLogger runs so they are never nil.
	install(slog.New(slog.DiscardHandler))
}

// options is the logging section of the config reduced to what the handler needs.
type options struct {
	enc        encoding
	order      []string
	level      slog.Level
	keep       int
	every      int
	stacks     bool
	dir        string
	mainFile   string
	errorsFile string
	profile    string
}

func optionsFrom(cfg *coreconfig.Config) options {
	o := options{enc: encodeJSON, keep: 1, every: 50, profile: "prod"}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.enc = encodeKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.enc = encodeKV
		}
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				o.order = append(o.order, k)
			}
		}
	}
	o.level = parseLevel(lc.Level)
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		o.keep, o.every = parseRatio(spec)
	}
	o.stacks = truthy(lc.Stacks)
	o.dir = strings.TrimSpace(lc.Dir)
	o.mainFile = strings.TrimSpace(lc.BotFile)
	o.errorsFile = strings.TrimSpace(lc.ErrorsFile)
	return o
}

// InitLogger installs the structured logger described by cfg. Only the first
// call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	outputs.once.Do(func() { err = setup(optionsFrom(cfg)) })
	return err
}

func setup(o options) error {
	level.Set(o.level)
	debugGate.set(o.keep, o.every)
	debugAll = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

	main := []io.Writer{os.Stdout}
	var errs []io.Writer
	if o.dir != "" {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		for _, target := range []struct {
			name string
			into *[]io.Writer
		}{{o.mainFile, &main}, {o.errorsFile, &errs}} {
			if target.name == "" {
				continue
			}
			f, err := os.OpenFile(filepath.Join(o.dir, target.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("logger: open %s: %w", target.name, err)
			}
			*target.into = append(*target.into, f)
			outputs.files = append(outputs.files, f)
		}
	}

	hopts := handlerOptions{level: &level, enc: o.enc, order: o.order, stacks: o.stacks}
	hopts.out = newSink(main...)
	outputs.sinks = append(outputs.sinks, hopts.out)
	if len(errs) > 0 {
		hopts.errOut = newSink(errs...)
		outputs.sinks = append(outputs.sinks, hopts.errOut)
	}

	root := slog.New(newRecordHandler(hopts))
	slog.SetDefault(root)
	install(root)

	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("cfg_profile", o.profile),
	)
	return nil
}

func install(root *slog.Logger) {
	components.Lock()
	clear(components.byName)
	components.Unlock()
	L = root
	TWire = Component("tg.wire")
}

// Shutdown flushes queued lines and closes log files.
func Shutdown() error {
	outputs.Lock()
	defer outputs.Unlock()
	if outputs.done {
		return nil
	}
	outputs.done = true
	var errs []error
	for _, s := range outputs.sinks {
		errs = append(errs, s.Close())
	}
	for _, f := range outputs.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Component returns L scoped to the named component, cached per name.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	components.Lock()
	defer components.Unlock()
	if l, ok := components.byName[name]; ok {
		return l
	}
	l := L.With("component", name)
	components.byName[name] = l
	return l
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent writes one record through logg, falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug detail should be
// logged. TRACE=1 lets every one through.
func ShouldSampleDebug() bool {
	return debugAll || debugGate.allow()
}

// sampler lets keep out of every events through.
type sampler struct {
	ratio atomic.Pointer[[2]int]
	seen  atomic.Uint64
}

func (s *sampler) set(keep, every int) {
	if keep <= 0 || every <= 0 {
		s.ratio.Store(nil)
		return
	}
	s.ratio.Store(&[2]int{min(keep, every), every})
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == nil {
		return true
	}
	n := s.seen.Add(1) - 1
	return int(n%uint64(r[1])) < r[0]
}

// parseRatio reads "keep/every" or "every"; anything invalid disables sampling.
func parseRatio(spec string) (int, int) {
	keepRaw, everyRaw, found := strings.Cut(strings.TrimSpace(spec), "/")
	if !found {
		keepRaw, everyRaw = "1", keepRaw
	}
	keep, err1 := strconv.Atoi(strings.TrimSpace(keepRaw))
	every, err2 := strconv.Atoi(strings.TrimSpace(everyRaw))
	if err1 != nil || err2 != nil || keep <= 0 || every <= 0 {
		return 0, 0
	}
	return keep, every
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
