package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"example.com/tetra-coop/internal/game"
	"example.com/tetra-coop/internal/store"
)

type ResultReader interface {
	List(ctx context.Context, limit int) ([]game.MatchResult, error)
	Get(ctx context.Context, matchID string) (game.MatchResult, error)
}

// ResultsHandler serves the archive of finished matches.
type ResultsHandler struct {
	Results ResultReader
}

func (h *ResultsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/results", h.List)
	mux.HandleFunc("GET /api/results/{id}", h.Get)
}

func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.Results.List(r.Context(), limit)
	if err != nil {
		internalError(w, "failed to load results")
		return
	}
	writeJSON(w, http.StatusOK, resultList{Results: results})
}

func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.Results.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "no such match")
		return
	}
	if err != nil {
		internalError(w, "failed to load result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
