package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/codewithmutahir/timeclock/internal/verify"
)

// maxFrameBytes bounds a single pushed camera frame.
const maxFrameBytes = 8 << 20

// VerifyHandler serves the hold-to-verify session endpoints.
type VerifyHandler struct {
	manager *verify.Manager
	faces   database.FaceReader
}

// NewVerifyHandler creates a verify handler.
func NewVerifyHandler(manager *verify.Manager, faces database.FaceReader) *VerifyHandler {
	return &VerifyHandler{manager: manager, faces: faces}
}

// createSessionRequest is the body of a session creation.
type createSessionRequest struct {
	EmployeeID string `json:"employee_id"`
}

// Create handles POST /verify/sessions. The employee must already have an
// enrolled descriptor; starting a new session replaces any previous one for
// the same employee.
func (h *VerifyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.EmployeeID == "" {
		respondError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	d, err := h.faces.Get(r.Context(), req.EmployeeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if d == nil {
		respondError(w, http.StatusNotFound, "employee has no enrolled face")
		return
	}

	sess := h.manager.CreateSession(req.EmployeeID, d.Descriptor)
	respondJSON(w, http.StatusCreated, sess.Snapshot())
}

// getSession resolves the session from the URL, writing a 404 when missing.
func (h *VerifyHandler) getSession(w http.ResponseWriter, r *http.Request) *verify.Session {
	sess := h.manager.GetSession(chi.URLParam(r, "sessionID"))
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
	}
	return sess
}

// Status handles GET /verify/sessions/{sessionID}.
func (h *VerifyHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.getSession(w, r)
	if sess == nil {
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

// PushFrame handles POST /verify/sessions/{sessionID}/frames. The body is
// one encoded camera frame. Frames pushed faster than the session consumes
// them are dropped.
func (h *VerifyHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	sess := h.getSession(w, r)
	if sess == nil {
		return
	}

	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	if len(frame) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}

	if err := sess.PushFrame(frame); err != nil {
		respondError(w, http.StatusGone, "session closed")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// Retry handles POST /verify/sessions/{sessionID}/retry.
func (h *VerifyHandler) Retry(w http.ResponseWriter, r *http.Request) {
	sess := h.getSession(w, r)
	if sess == nil {
		return
	}

	switch err := sess.Retry(); {
	case err == nil:
		respondJSON(w, http.StatusOK, sess.Snapshot())
	case errors.Is(err, verify.ErrSessionClosed):
		respondError(w, http.StatusGone, "session closed")
	case errors.Is(err, verify.ErrNotRetryable):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Close handles DELETE /verify/sessions/{sessionID}.
func (h *VerifyHandler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.manager.CloseSession(chi.URLParam(r, "sessionID")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Events handles GET /verify/sessions/{sessionID}/events, streaming session
// state changes over SSE until the session closes or the client disconnects.
func (h *VerifyHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := h.getSession(w, r)
	if sess == nil {
		return
	}
	streamSessionEvents(w, r, sess)
}
