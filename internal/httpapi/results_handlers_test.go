package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/tetra-coop/internal/game"
	"example.com/tetra-coop/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResults struct {
	byID      map[string]game.MatchResult
	lastLimit int
	err       error
}

func (f *fakeResults) List(_ context.Context, limit int) ([]game.MatchResult, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := []game.MatchResult{}
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeResults) Get(_ context.Context, id string) (game.MatchResult, error) {
	if f.err != nil {
		return game.MatchResult{}, f.err
	}
	r, ok := f.byID[id]
	if !ok {
		return game.MatchResult{}, store.ErrResultNotFound
	}
	return r, nil
}

func newResultsMux(f *fakeResults) http.Handler {
	mux := http.NewServeMux()
	(&ResultsHandler{Results: f}).Register(mux)
	return mux
}

func TestResultsHandler(t *testing.T) {
	f := &fakeResults{byID: map[string]game.MatchResult{
		"m1": {MatchID: "m1", Reason: game.EndReasonInactivity, Level: 3},
	}}
	mux := newResultsMux(f)

	cases := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
	}{
		{"list default limit", "/api/results", http.StatusOK, store.DefaultListLimit},
		{"list with limit", "/api/results?limit=5", http.StatusOK, 5},
		{"list bad limit", "/api/results?limit=-1", http.StatusBadRequest, 0},
		{"get existing", "/api/results/m1", http.StatusOK, 0},
		{"get missing", "/api/results/nope", http.StatusNotFound, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.lastLimit = 0
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, tc.wantCode, rr.Code)
			assert.Equal(t, tc.wantLimit, f.lastLimit)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results/m1", nil))
	var got game.MatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Level)
}

func TestResultsHandler_StoreError(t *testing.T) {
	mux := newResultsMux(&fakeResults{err: errors.New("db down")})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, buf.String(), "path=/healthz")
	assert.Contains(t, buf.String(), "status=418")
}
