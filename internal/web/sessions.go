package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/session"
)

// maxEditBytes caps the body of a session edit.
const maxEditBytes = 4 << 20

type openSessionRequest struct {
	ID string `json:"id"`
}

// HandleSessionOpen handles POST /api/sessions. An empty body or id opens a
// new draft.
func (h *Handlers) HandleSessionOpen(w http.ResponseWriter, r *http.Request) {
	uid, err := identity.FromContext{}.UserID(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := h.sessions.Open(r.Context(), uid, req.ID)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+s.ID)
	renderJSON(w, http.StatusCreated, s.View())
}

// HandleSessionGet handles GET /api/sessions/{sid}.
func (h *Handlers) HandleSessionGet(w http.ResponseWriter, r *http.Request) {
	uid, err := identity.FromContext{}.UserID(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	s, err := h.sessions.Get(uid, chi.URLParam(r, "sid"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, s.View())
}

// HandleSessionEdit handles PATCH /api/sessions/{sid}. The write happens
// after the debounce; the response reports the pending state.
func (h *Handlers) HandleSessionEdit(w http.ResponseWriter, r *http.Request) {
	uid, err := identity.FromContext{}.UserID(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var edit session.Edit
	if err := decodeBody(r, &edit); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if edit.Empty() {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("edit changes nothing"))
		return
	}

	view, err := h.sessions.Edit(uid, chi.URLParam(r, "sid"), edit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, view)
}

// HandleSessionFlush handles POST /api/sessions/{sid}/flush.
func (h *Handlers) HandleSessionFlush(w http.ResponseWriter, r *http.Request) {
	uid, err := identity.FromContext{}.UserID(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	view, err := h.sessions.Flush(r.Context(), uid, chi.URLParam(r, "sid"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, view)
}

// HandleSessionClose handles DELETE /api/sessions/{sid}.
func (h *Handlers) HandleSessionClose(w http.ResponseWriter, r *http.Request) {
	uid, err := identity.FromContext{}.UserID(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := h.sessions.Close(uid, chi.URLParam(r, "sid")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxEditBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
