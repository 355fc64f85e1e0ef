package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/membergate/internal/member"
)

type fakeProbe struct {
	pingErr  error
	stats    member.Stats
	statsErr error
}

func (f fakeProbe) Ping(context.Context) error { return f.pingErr }

func (f fakeProbe) Stats(context.Context) (member.Stats, error) { return f.stats, f.statsErr }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthz(t *testing.T) {
	rec, body := get(t, NewRouter(fakeProbe{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "build")

	rec, body = get(t, NewRouter(fakeProbe{pingErr: errors.New("down")}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", body["database"])
	assert.Equal(t, "down", body["error"])
}

func TestStats(t *testing.T) {
	rec, body := get(t, NewRouter(fakeProbe{stats: member.Stats{Total: 4, Approved: 1, Pending: 3}}), "/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["total"])
	assert.EqualValues(t, 25, body["approval_rate"])

	_, body = get(t, NewRouter(fakeProbe{}), "/stats")
	assert.NotContains(t, body, "approval_rate")

	rec, _ = get(t, NewRouter(fakeProbe{statsErr: errors.New("db")}), "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec, body := get(t, NewRouter(fakeProbe{}), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", body["error"])
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ln.Addr().String(), time.Second, fakeProbe{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
