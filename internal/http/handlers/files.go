package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vocalizz/internal/storage"
)

// ServeFile serves signed links produced by the local file store.
func (a *App) ServeFile(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, r, http.StatusNotFound, codeNotFound, nil)
		return
	}
	key := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := a.Files.Verify(key, q.Get("expires"), q.Get("sig")); err != nil {
		a.error(w, r, http.StatusForbidden, codeInvalidSignature, nil)
		return
	}
	data, err := a.Files.Download(r.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		a.error(w, r, http.StatusNotFound, codeNotFound, nil)
		return
	}
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
