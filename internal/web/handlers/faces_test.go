package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/codewithmutahir/timeclock/internal/database/mock"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

func enrolledDescriptor(fill float32) []float32 {
	d := make([]float32, facematch.DescriptorLength)
	for i := range d {
		d[i] = fill
	}
	return d
}

func enroll(t *testing.T, h *FacesHandler, employeeID string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	req := jsonRequest(t, http.MethodPut, "/faces/"+employeeID, body)
	req = requestWithChiParams(req, map[string]string{"employeeID": employeeID})
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)
	return rec
}

func TestEnroll(t *testing.T) {
	faces := mock.NewFaceStore()
	h := NewFacesHandler(faces)

	rec := enroll(t, h, "emp-1", map[string]any{
		"name":       "Jane Doe",
		"descriptor": enrolledDescriptor(0.1),
	})
	assertStatusCode(t, rec, http.StatusOK)

	stored, err := faces.Get(context.Background(), "emp-1")
	if err != nil || stored == nil {
		t.Fatalf("expected stored descriptor, got %v (err %v)", stored, err)
	}
	if stored.Name != "Jane Doe" {
		t.Errorf("expected name Jane Doe, got %q", stored.Name)
	}
}

func TestEnroll_InvalidDescriptor(t *testing.T) {
	faces := mock.NewFaceStore()
	h := NewFacesHandler(faces)

	rec := enroll(t, h, "emp-1", map[string]any{
		"name":       "Jane Doe",
		"descriptor": []float32{1, 2, 3},
	})
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "invalid descriptor: expected 128 values, got 3")
}

func TestEnroll_MissingName(t *testing.T) {
	faces := mock.NewFaceStore()
	h := NewFacesHandler(faces)

	rec := enroll(t, h, "emp-1", map[string]any{
		"name":       "   ",
		"descriptor": enrolledDescriptor(0.1),
	})
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "employee name is required")
}

func TestStatus(t *testing.T) {
	faces := mock.NewFaceStore()
	if err := faces.Save(context.Background(), database.StoredDescriptor{
		EmployeeID: "emp-1", Name: "Jane Doe", Descriptor: enrolledDescriptor(0.1),
	}); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	h := NewFacesHandler(faces)

	req := httptest.NewRequest(http.MethodGet, "/faces/emp-1", nil)
	req = requestWithChiParams(req, map[string]string{"employeeID": "emp-1"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp map[string]any
	parseJSONResponse(t, rec, &resp)
	if resp["enrolled"] != true {
		t.Error("expected enrolled=true")
	}
	if resp["name"] != "Jane Doe" {
		t.Errorf("expected name Jane Doe, got %v", resp["name"])
	}
	if _, ok := resp["descriptor"]; ok {
		t.Error("status must not expose the descriptor")
	}
}

func TestStatus_NotEnrolled(t *testing.T) {
	h := NewFacesHandler(mock.NewFaceStore())

	req := httptest.NewRequest(http.MethodGet, "/faces/emp-1", nil)
	req = requestWithChiParams(req, map[string]string{"employeeID": "emp-1"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp map[string]any
	parseJSONResponse(t, rec, &resp)
	if resp["enrolled"] != false {
		t.Error("expected enrolled=false")
	}
}

func TestDelete_BestEffort(t *testing.T) {
	faces := mock.NewFaceStore()
	faces.DeleteError = errors.New("boom")
	h := NewFacesHandler(faces)

	req := httptest.NewRequest(http.MethodDelete, "/faces/emp-1", nil)
	req = requestWithChiParams(req, map[string]string{"employeeID": "emp-1"})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	// Storage failure is logged, not surfaced.
	assertStatusCode(t, rec, http.StatusOK)
}

func TestIdentify(t *testing.T) {
	faces := mock.NewFaceStore()
	for _, d := range []database.StoredDescriptor{
		{EmployeeID: "emp-1", Name: "Jane Doe", Descriptor: enrolledDescriptor(0.0)},
		{EmployeeID: "emp-2", Name: "John Roe", Descriptor: enrolledDescriptor(1.0)},
	} {
		if err := faces.Save(context.Background(), d); err != nil {
			t.Fatalf("seed enrollment: %v", err)
		}
	}
	h := NewFacesHandler(faces)

	query := enrolledDescriptor(0.0)
	query[0] = 0.1 // very close to emp-1
	req := jsonRequest(t, http.MethodPost, "/faces/identify", map[string]any{"descriptor": query})
	rec := httptest.NewRecorder()
	h.Identify(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp map[string]any
	parseJSONResponse(t, rec, &resp)
	if resp["employee_id"] != "emp-1" {
		t.Errorf("expected emp-1, got %v", resp["employee_id"])
	}
	if resp["match"] != true {
		t.Errorf("expected match=true, got %v", resp["match"])
	}
}

func TestIdentify_NoEnrollments(t *testing.T) {
	h := NewFacesHandler(mock.NewFaceStore())

	req := jsonRequest(t, http.MethodPost, "/faces/identify", map[string]any{
		"descriptor": enrolledDescriptor(0.1),
	})
	rec := httptest.NewRecorder()
	h.Identify(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "no enrolled employees")
}
