package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/engine"
	apperrors "github.com/courtcopilot/courtcopilot/internal/errors"
	"github.com/courtcopilot/courtcopilot/internal/metrics"
)

// NDJSONContentType is the media type of the search stream.
const NDJSONContentType = "application/x-ndjson"

// SearchEvent is one line of the search stream. Result is a complete
// snapshot; clients replace, never merge.
type SearchEvent struct {
	State  engine.State               `json:"state"`
	Stage  string                     `json:"stage,omitempty"`
	Cached bool                       `json:"cached,omitempty"`
	Result *core.SearchResult         `json:"result,omitempty"`
	Error  *apperrors.HTTPErrorDetail `json:"error,omitempty"`
}

// API serves the research surface over one engine.Service.
type API struct {
	svc *engine.Service
}

// NewAPI returns handlers backed by svc.
func NewAPI(svc *engine.Service) *API {
	return &API{svc: svc}
}

// Search runs a search. By default the response is an NDJSON stream with
// one SearchEvent per pipeline update; ?stream=false returns only the final
// result. Requests rejected before any update get a plain JSON error.
func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	if r.URL.Query().Get("stream") == "false" {
		result, err := a.svc.ExecuteSearch(r.Context(), req, nil)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	started := false

	_, err := a.svc.ExecuteSearch(r.Context(), req, func(u engine.Update) {
		if !started {
			w.Header().Set("Content-Type", NDJSONContentType)
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		_ = enc.Encode(a.event(r, u))
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil && !started {
		respondWithError(w, r, err)
	}
}

func (a *API) event(r *http.Request, u engine.Update) SearchEvent {
	ev := SearchEvent{State: u.State, Stage: u.Stage, Cached: u.Cached}
	if u.State == engine.StateFailed {
		envelope := apperrors.EnsureCorrelationID(apperrors.FromError(r.Context(), u.Err), r.Context())
		apperrors.Observe(r, envelope, apperrors.HTTPStatusFromEnvelope(envelope))
		detail := apperrors.Body(envelope).Error
		ev.Error = &detail
		return ev
	}
	result := u.Result
	ev.Result = &result
	return ev
}

// CachedSearch returns the cached result for the posted request, or 404.
func (a *API) CachedSearch(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	result, ok := a.svc.CachedResult(r.Context(), req)
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError("no cached result for this search"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearCache drops every cached result.
func (a *API) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed := a.svc.ClearCache(r.Context())
	metrics.RecordCacheCleared(removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// History lists recent searches, newest first.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.History(r.Context()))
}

// ClearHistory forgets every recent search.
func (a *API) ClearHistory(w http.ResponseWriter, r *http.Request) {
	a.svc.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
