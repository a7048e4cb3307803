package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/note"
	"github.com/hpungsan/scribe/internal/ops"
	"github.com/hpungsan/scribe/internal/session"
)

// Handlers contains HTTP route handlers for the web UI and editor API.
type Handlers struct {
	deps     ops.Deps
	sessions *session.Manager
	renderer *Renderer
}

// HandleList handles GET /notes.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Query:  q.Get("q"),
		Tag:    q.Get("tag"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.deps, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Notes",
			Version: h.renderer.version,
			Nav:     "notes",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		AllTags:    result.AllTags,
		Query:      input.Query,
		Tag:        input.Tag,
	})
}

// HandleDetail handles GET /notes/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	n, err := ops.Fetch(r.Context(), h.deps, ops.FetchInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, n)
		return
	}

	title := note.DisplayTitle(&n.Note)
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   title,
			Version: h.renderer.version,
			Nav:     "notes",
		},
		Note:         n,
		RenderedHTML: renderContent(n.Content),
		DisplayTitle: title,
	})
}

// HandleDelete handles DELETE /notes/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.deps, ops.DeleteInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/notes")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandlePin returns the handler for POST /notes/{id}/pin and /unpin.
func (h *Handlers) HandlePin(pinned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := ops.Pin(r.Context(), h.deps, ops.PinInput{ID: chi.URLParam(r, "id"), Pinned: pinned})
		if err != nil {
			renderJSON(w, errors.As(err).Status, errorBody(errors.As(err)))
			return
		}
		renderJSON(w, http.StatusOK, result)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
