package logger

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"
)

type encoding int

const (
	encodeJSON encoding = iota
	encodeKV
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type handlerOptions struct {
	level  slog.Leveler
	out    *sink
	errOut *sink // additionally receives ERROR and above
	enc    encoding
	order  []string
	stacks bool
}

type field struct {
	key string
	val any
}

// recordHandler renders records as one flat line with a stable key order.
type recordHandler struct {
	opts   handlerOptions
	rank   map[string]int
	fields []field
	prefix string
}

func newRecordHandler(opts handlerOptions) *recordHandler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if len(opts.order) == 0 {
		opts.order = keyOrder
	}
	rank := make(map[string]int, len(opts.order))
	for i, k := range opts.order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &recordHandler{opts: opts, rank: rank}
}

func (h *recordHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	e := newEntry()
	for _, a := range attrs {
		e.addAttr(h.prefix, a)
	}
	clone := *h
	clone.fields = slices.Clip(h.fields)
	for _, k := range e.keys {
		clone.fields = append(clone.fields, field{k, e.vals[k]})
	}
	return &clone
}

func (h *recordHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

func (h *recordHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return errors.New("logger: sink not initialized")
	}
	asJSON := h.opts.enc == encodeJSON

	e := newEntry()
	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(timeLayout))
	e.set("level", levelName(r.Level))
	if asJSON {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	for _, f := range h.fields {
		e.set(f.key, f.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.addAttr(h.prefix, a)
		return true
	})
	scopeFrom(ctx).fill(e)

	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if asJSON {
				e.setDefault("rid_full", rid)
			}
			e.set("rid", short)
		}
	}
	e.setDefault("event", r.Message)
	e.setDefault("event", "unknown")
	e.setDefault("component", "app")
	if status := e.str("status"); status != "" {
		e.set("status", strings.ToLower(status))
	}
	if h.opts.stacks && r.Level >= slog.LevelError {
		e.setDefault("stack", string(debug.Stack()))
	}

	line := h.encode(e)
	if err := h.opts.out.Write(line); err != nil {
		return err
	}
	if h.opts.errOut != nil && r.Level >= slog.LevelError {
		return h.opts.errOut.Write(line)
	}
	return nil
}

func (h *recordHandler) encode(e *entry) []byte {
	keys := e.sorted(h.rank)
	var buf bytes.Buffer
	if h.opts.enc == encodeJSON {
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(k))
			buf.WriteByte(':')
			data, err := json.Marshal(e.vals[k])
			if err != nil {
				data, _ = json.Marshal(fmt.Sprint(e.vals[k]))
			}
			buf.Write(data)
		}
		buf.WriteString("}\n")
		return buf.Bytes()
	}
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(e.vals[k]))
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

// entry is an insertion ordered set of fields for one record.
type entry struct {
	keys []string
	vals map[string]any
}

func newEntry() *entry {
	return &entry{vals: make(map[string]any, 16)}
}

// set stores v under k; nil and empty strings remove the key.
func (e *entry) set(k string, v any) {
	if v == nil || v == "" {
		if _, ok := e.vals[k]; ok {
			delete(e.vals, k)
			e.keys = slices.DeleteFunc(e.keys, func(x string) bool { return x == k })
		}
		return
	}
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.vals[k] = v
}

func (e *entry) setDefault(k string, v any) {
	if _, ok := e.vals[k]; !ok {
		e.set(k, v)
	}
}

func (e *entry) str(k string) string {
	v, ok := e.vals[k]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (e *entry) addAttr(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			e.addAttr(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := fieldValue(key, a.Value); ok {
		e.set(k, v)
	}
}

// sorted returns ranked keys first, the rest alphabetically.
func (e *entry) sorted(rank map[string]int) []string {
	keys := slices.Clone(e.keys)
	slices.SortStableFunc(keys, func(a, b string) int {
		ra, okA := rank[a]
		rb, okB := rank[b]
		switch {
		case okA && okB:
			return cmp.Compare(ra, rb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}
