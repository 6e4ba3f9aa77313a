package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/engine"
	"gridbot/internal/filter"
	"gridbot/internal/ladder"
	"gridbot/internal/store"
)

type fakeEngine struct {
	status  engine.Status
	verdict *filter.Verdict
}

func (f *fakeEngine) Status() engine.Status { return f.status }

func (f *fakeEngine) LastVerdict() (filter.Verdict, bool) {
	if f.verdict == nil {
		return filter.Verdict{}, false
	}
	return *f.verdict, true
}

type fakeHistory struct {
	store.Nop
	closes []store.CloseRecord
	err    error
}

func (f fakeHistory) ListCloses(context.Context, int) ([]store.CloseRecord, error) {
	return f.closes, f.err
}

func newTestServer(t *testing.T, e StatusProvider, h HistoryReader) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Engine: e, History: h})
	require.NoError(t, err)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, nil)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatus(t *testing.T) {
	e := &fakeEngine{status: engine.Status{
		Symbol:      "XAUUSD",
		Venue:       "paper",
		BasketState: "active",
		Regime:      "ranging/normal",
		Ladder:      ladder.State{Step: 3, MaxSteps: 9},
	}}
	rec := get(t, newTestServer(t, e, nil), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "XAUUSD", body["symbol"])
	assert.Equal(t, "active", body["basket_state"])
	ladderBody, ok := body["ladder"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.0, ladderBody["step"])
}

func TestVerdict(t *testing.T) {
	e := &fakeEngine{}
	h := newTestServer(t, e, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/verdict").Code)

	e.verdict = &filter.Verdict{
		Variant: "standard",
		At:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Results: []filter.Result{
			{Gate: "spread", Allowed: true},
			{Gate: "spacing", Allowed: false, Reason: "drop 0.80 < 1.50"},
		},
	}
	rec := get(t, h, "/api/verdict")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Allowed bool            `json:"allowed"`
		Summary string          `json:"summary"`
		Denials []filter.Result `json:"denials"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Allowed)
	require.Len(t, body.Denials, 1)
	assert.Equal(t, "spacing", body.Denials[0].Gate)
	assert.Contains(t, body.Summary, "spacing:deny")
}

func TestHistory(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/closes").Code)

	h = newTestServer(t, &fakeEngine{}, fakeHistory{closes: []store.CloseRecord{{Reason: "take_profit", Count: 2}}})
	rec := get(t, h, "/api/closes?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = get(t, h, "/api/entries")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	h = newTestServer(t, &fakeEngine{}, fakeHistory{err: errors.New("db locked")})
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/closes").Code)
}
