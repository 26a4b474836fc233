package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

// FacesHandler serves descriptor enrollment and identification.
type FacesHandler struct {
	faces database.FaceWriter
}

// NewFacesHandler creates a faces handler.
func NewFacesHandler(faces database.FaceWriter) *FacesHandler {
	return &FacesHandler{faces: faces}
}

// enrollRequest is the body of a descriptor enrollment.
type enrollRequest struct {
	Name       string    `json:"name"`
	Descriptor []float32 `json:"descriptor"`
}

// Enroll handles PUT /faces/{employeeID}. Re-enrollment overwrites the
// stored descriptor in place.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if facematch.NormalizeEmployeeName(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "employee name is required")
		return
	}
	if err := facematch.ValidateDescriptor(req.Descriptor); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := database.StoredDescriptor{
		EmployeeID: employeeID,
		Name:       strings.TrimSpace(req.Name),
		Descriptor: req.Descriptor,
		UpdatedAt:  time.Now(),
	}
	if err := h.faces.Save(r.Context(), d); err != nil {
		log.Printf("enrollment failed for %s: %v", sanitizeForLog(employeeID), err)
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Status handles GET /faces/{employeeID}. The descriptor itself is never
// returned.
func (h *FacesHandler) Status(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	d, err := h.faces.Get(r.Context(), employeeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if d == nil {
		respondJSON(w, http.StatusOK, map[string]any{"enrolled": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enrolled":   true,
		"name":       d.Name,
		"updated_at": d.UpdatedAt,
	})
}

// Delete handles DELETE /faces/{employeeID}. Descriptor removal is
// best-effort: a storage failure is logged but the operation still reports
// success, since the employee record itself is the primary resource.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	if err := h.faces.Delete(r.Context(), employeeID); err != nil {
		log.Printf("descriptor delete failed for %s: %v", sanitizeForLog(employeeID), err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// identifyRequest is the body of a descriptor identification query.
type identifyRequest struct {
	Descriptor []float32 `json:"descriptor"`
}

// Identify handles POST /faces/identify: finds the enrolled employee
// nearest to the query descriptor.
func (h *FacesHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := facematch.ValidateDescriptor(req.Descriptor); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, distance, err := h.faces.Identify(r.Context(), req.Descriptor)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if d == nil {
		respondError(w, http.StatusNotFound, "no enrolled employees")
		return
	}

	grade := facematch.GradeDistance(distance)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"employee_id": d.EmployeeID,
		"name":        d.Name,
		"distance":    distance,
		"match":       grade == facematch.GradeMatch,
		"message":     grade.Message(),
	})
}
