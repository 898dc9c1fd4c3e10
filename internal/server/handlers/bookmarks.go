package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/bookmarks"
	apperrors "github.com/courtcopilot/courtcopilot/internal/errors"
)

// ListBookmarks returns saved work, most recently saved first.
func (a *API) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.ListBookmarks(r.Context()))
}

// SaveBookmark accepts a bookmark in its persisted shape. The key is always
// derived server-side; a client-supplied key is ignored.
func (a *API) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	var bm core.Bookmark
	if err := decodeJSON(w, r, &bm); err != nil {
		respondWithError(w, r, err)
		return
	}

	ctx := r.Context()
	var (
		key string
		err error
	)
	switch bm.Kind {
	case core.BookmarkSearch:
		if bm.Search == nil || bm.Search.Request.Query == "" {
			respondWithError(w, r, &core.ValidationError{Field: "params", Message: "search parameters are required"})
			return
		}
		req := bm.Search.Request.Normalize()
		key, _ = bookmarks.Key(core.BookmarkSearch, req)
		err = a.svc.SaveSearchBookmark(ctx, req, bm.Search.Result)
	case core.BookmarkDocument:
		if bm.Document.FileName == "" {
			respondWithError(w, r, &core.ValidationError{Field: "result", Message: "fileName is required"})
			return
		}
		key, _ = bookmarks.Key(core.BookmarkDocument, bm.Document.FileName)
		err = a.svc.SaveDocumentBookmark(ctx, *bm.Document)
	case core.BookmarkCrossReference:
		xref := bm.CrossReference
		if xref.FileAName == "" || xref.FileBName == "" {
			respondWithError(w, r, &core.ValidationError{Field: "result", Message: "fileAName and fileBName are required"})
			return
		}
		key, _ = bookmarks.Key(core.BookmarkCrossReference, xref.FileAName, xref.FileBName)
		err = a.svc.SaveCrossReferenceBookmark(ctx, *xref)
	}
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// RemoveBookmark deletes one bookmark. Unknown keys succeed.
func (a *API) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	// chi matches on RawPath when present, leaving the param escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid bookmark key"))
			return
		}
		key = unescaped
	}
	if err := a.svc.RemoveBookmark(r.Context(), key); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearBookmarks deletes every bookmark.
func (a *API) ClearBookmarks(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ClearBookmarks(r.Context()); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
