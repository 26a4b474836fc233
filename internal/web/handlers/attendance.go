package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codewithmutahir/timeclock/internal/attendance"
	"github.com/codewithmutahir/timeclock/internal/database"
)

// TokenConsumer redeems one-time verification tokens minted on a successful
// face verification.
type TokenConsumer interface {
	ConsumeToken(token, employeeID string) bool
}

// AttendanceHandler serves the clock endpoints.
type AttendanceHandler struct {
	engine *attendance.Engine
	store  database.AttendanceReader
	faces  database.FaceReader
	tokens TokenConsumer
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(engine *attendance.Engine, store database.AttendanceReader, faces database.FaceReader, tokens TokenConsumer) *AttendanceHandler {
	return &AttendanceHandler{
		engine: engine,
		store:  store,
		faces:  faces,
		tokens: tokens,
	}
}

// clockRequest is the body of all clock mutation endpoints. Date is the
// employee-local calendar day, supplied by the kiosk.
type clockRequest struct {
	Date   string `json:"date"`
	Token  string `json:"token,omitempty"`
	Type   string `json:"type,omitempty"`    // break type (break start only)
	IsPaid bool   `json:"is_paid,omitempty"` // break start only
}

// requireVerification enforces the face verification gate: employees with an
// enrolled descriptor must present a valid one-time token; employees without
// one clock freely.
func (h *AttendanceHandler) requireVerification(w http.ResponseWriter, r *http.Request, employeeID, token string) bool {
	enrolled, err := h.faces.Get(r.Context(), employeeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error")
		return false
	}
	if enrolled == nil {
		return true
	}
	if h.tokens == nil || !h.tokens.ConsumeToken(token, employeeID) {
		respondError(w, http.StatusForbidden, "face verification required")
		return false
	}
	return true
}

// ClockIn handles POST /attendance/{employeeID}/clock-in.
func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if !h.requireVerification(w, r, employeeID, req.Token) {
		return
	}

	rec, err := h.engine.ClockIn(r.Context(), employeeID, req.Date)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondRecord(w, rec)
}

// ClockOut handles POST /attendance/{employeeID}/clock-out.
func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if !h.requireVerification(w, r, employeeID, req.Token) {
		return
	}

	rec, err := h.engine.ClockOut(r.Context(), employeeID, req.Date)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondRecord(w, rec)
}

// StartBreak handles POST /attendance/{employeeID}/breaks/start.
func (h *AttendanceHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	rec, err := h.engine.StartBreak(r.Context(), employeeID, req.Date, req.Type, req.IsPaid)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondRecord(w, rec)
}

// EndBreak handles POST /attendance/{employeeID}/breaks/end.
func (h *AttendanceHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	rec, err := h.engine.EndBreak(r.Context(), employeeID, req.Date)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondRecord(w, rec)
}

// Current handles GET /attendance/{employeeID}/current?date=yyyy-MM-dd.
// The record may belong to yesterday when an overnight shift is still open.
func (h *AttendanceHandler) Current(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	date := r.URL.Query().Get("date")

	rec, err := h.engine.CurrentRecord(r.Context(), employeeID, date)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"record":  rec,
	})
}

// History handles GET /attendance/{employeeID}?from=yyyy-MM-dd&to=yyyy-MM-dd.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	if err := attendance.ValidateDateKey(from); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := attendance.ValidateDateKey(to); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.Range(r.Context(), employeeID, from, to)
	if err != nil {
		log.Printf("range query failed for %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"records": records,
	})
}

// editRequest is the body of a management correction. Omitted fields keep
// their stored values.
type editRequest struct {
	ClockIn  *time.Time                `json:"clock_in"`
	ClockOut *time.Time                `json:"clock_out"`
	Breaks   *[]attendance.BreakRecord `json:"breaks"`
	EditedBy string                    `json:"edited_by"`
}

// Edit handles PUT /attendance/{employeeID}/{date}, a management correction
// of an attendance record.
func (h *AttendanceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	date := chi.URLParam(r, "date")

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	edit := attendance.Edit{
		ClockIn:  req.ClockIn,
		ClockOut: req.ClockOut,
		Breaks:   req.Breaks,
	}
	rec, err := h.engine.ApplyEdit(r.Context(), employeeID, date, edit, req.EditedBy)
	if err != nil {
		respondClockError(w, err)
		return
	}
	respondRecord(w, rec)
}
