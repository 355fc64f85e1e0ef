package bot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

// apiCall is one request received by fakeTelegram.
type apiCall struct {
	Method string
	Params map[string]string
}

// fakeTelegram is a Bot API stand-in recording every call. Sends to chats in
// blocked fail with 403.
type fakeTelegram struct {
	mu      sync.Mutex
	calls   []apiCall
	nextID  int
	blocked map[int64]bool
	srv     *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{blocked: map[int64]bool{}, nextID: 100}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
		for k, v := range raw {
			params[k] = fmt.Sprint(v)
		}
	}
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	f.nextID++
	id := f.nextID
	chatID, _ := strconv.ParseInt(params["chat_id"], 10, 64)
	blocked := f.blocked[chatID]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if blocked {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
		return
	}
	result := map[string]any{
		"message_id": id,
		"date":       0,
		"chat":       map[string]any{"id": chatID, "type": "private"},
		"text":       params["text"],
		"caption":    params["caption"],
	}
	// Media sends echo the file back; telebot reads it from the result.
	switch method {
	case "sendPhoto":
		result["photo"] = []any{map[string]any{"file_id": params["photo"], "file_unique_id": "u", "width": 1, "height": 1}}
	case "sendVideo", "sendDocument", "sendAudio":
		kind := strings.ToLower(strings.TrimPrefix(method, "send"))
		result[kind] = map[string]any{"file_id": params[kind], "file_unique_id": "u"}
	}
	resp := map[string]any{"ok": true, "result": result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeTelegram) bot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{URL: f.srv.URL, Token: "TEST", Offline: true})
	require.NoError(t, err)
	return b
}

// Calls returns the recorded calls, optionally filtered by method.
func (f *fakeTelegram) Calls(methods ...string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(methods) == 0 {
		return append([]apiCall(nil), f.calls...)
	}
	var out []apiCall
	for _, c := range f.calls {
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
			}
		}
	}
	return out
}

// To returns the calls addressed to chat.
func (f *fakeTelegram) To(chat int64, methods ...string) []apiCall {
	var out []apiCall
	for _, c := range f.Calls(methods...) {
		if c.Params["chat_id"] == strconv.FormatInt(chat, 10) {
			out = append(out, c)
		}
	}
	return out
}

// Texts joins the text of the calls for substring assertions.
func Texts(calls []apiCall) string {
	var b strings.Builder
	for _, c := range calls {
		b.WriteString(c.Params["text"])
		b.WriteString(c.Params["caption"])
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *fakeTelegram) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}
