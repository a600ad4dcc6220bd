package patient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/erflow/erflow/internal/domain/bed"
)

// mockAllocator records Occupy calls and can be primed to fail.
type mockAllocator struct {
	calls []struct{ bedID, patientID uuid.UUID }
	err   error
}

func (m *mockAllocator) Occupy(_ context.Context, bedID, patientID uuid.UUID) error {
	m.calls = append(m.calls, struct{ bedID, patientID uuid.UUID }{bedID, patientID})
	return m.err
}

func newTestHandler(t *testing.T) (*Handler, *Scheduler, *mockAllocator) {
	t.Helper()
	sched := NewScheduler(NewMemoryRepo(), "ED", zerolog.New(io.Discard), nil)
	alloc := &mockAllocator{}
	h := NewHandler(sched, alloc, EstimateConfig{RoomsAvailable: 1, AvgServiceMinutes: 30})
	return h, sched, alloc
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string, pathParams map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range pathParams {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestCreatePatient(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doJSON(t, h.CreatePatient, http.MethodPost, "/patients",
		`{"name":"Ada","acuity":2,"chief_complaint":"Chest pain","age":64,"gender":"F"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Status != StatusAwaitingTriage {
		t.Errorf("expected AWAITING_TRIAGE, got %s", p.Status)
	}
	if p.Name != "Ada" || p.Acuity != 2 {
		t.Errorf("unexpected patient payload: %+v", p)
	}
}

func TestCreatePatient_InvalidAcuity(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h.CreatePatient, http.MethodPost, "/patients", `{"name":"X","acuity":9}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h.GetPatient, http.MethodGet, "/patients/x", "", map[string]string{"id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetPatient_InvalidID(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h.GetPatient, http.MethodGet, "/patients/x", "", map[string]string{"id": "not-a-uuid"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListActivePatients_PaginationEnvelope(t *testing.T) {
	h, sched, _ := newTestHandler(t)
	for i := 0; i < 3; i++ {
		if _, err := sched.Register(context.Background(), RegisterInput{Name: "P", Acuity: 3}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	rec := doJSON(t, h.ListActivePatients, http.MethodGet, "/patients?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data    []*Patient `json:"data"`
		Total   int        `json:"total"`
		HasMore bool       `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 in page, got %d", len(resp.Data))
	}
	if !resp.HasMore {
		t.Error("expected has_more true")
	}
}

func TestGetTriageQueue_Empty(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h.GetTriageQueue, http.MethodGet, "/patients/queue", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestGetNextAwaitingTriage_NoContent(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h.GetNextAwaitingTriage, http.MethodGet, "/patients/next", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestUpdateStatus_BadValue(t *testing.T) {
	h, sched, _ := newTestHandler(t)
	p, _ := sched.Register(context.Background(), RegisterInput{Name: "Ada", Acuity: 3})

	rec := doJSON(t, h.UpdateStatus, http.MethodPatch, "/patients/x/status",
		`{"new_status":"NAPPING"}`, map[string]string{"id": p.ID.String()})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAssignBed_Orchestration(t *testing.T) {
	h, sched, alloc := newTestHandler(t)
	p, _ := sched.Register(context.Background(), RegisterInput{Name: "Ada", Acuity: 2})
	bedID := uuid.New()

	rec := doJSON(t, h.AssignBed, http.MethodPatch, "/patients/x/bed",
		`{"bed_id":"`+bedID.String()+`"}`, map[string]string{"id": p.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(alloc.calls) != 1 {
		t.Fatalf("expected one Occupy call, got %d", len(alloc.calls))
	}
	if alloc.calls[0].bedID != bedID || alloc.calls[0].patientID != p.ID {
		t.Error("Occupy called with wrong ids")
	}

	got, _ := sched.Get(context.Background(), p.ID)
	if got.Status != StatusInBed || got.BedID == nil || *got.BedID != bedID {
		t.Error("expected patient moved to IN_BED with bed recorded")
	}
}

func TestAssignBed_UnknownBed(t *testing.T) {
	h, sched, alloc := newTestHandler(t)
	alloc.err = bed.ErrNotFound
	p, _ := sched.Register(context.Background(), RegisterInput{Name: "Ada", Acuity: 2})

	rec := doJSON(t, h.AssignBed, http.MethodPatch, "/patients/x/bed",
		`{"bed_id":"`+uuid.NewString()+`"}`, map[string]string{"id": p.ID.String()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	// The scheduler half must not have run.
	got, _ := sched.Get(context.Background(), p.ID)
	if got.BedID != nil || got.Status == StatusInBed {
		t.Error("expected patient unchanged after allocator failure")
	}
}

func TestAssignBed_UnknownPatientSkipsAllocator(t *testing.T) {
	h, _, alloc := newTestHandler(t)

	rec := doJSON(t, h.AssignBed, http.MethodPatch, "/patients/x/bed",
		`{"bed_id":"`+uuid.NewString()+`"}`, map[string]string{"id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if len(alloc.calls) != 0 {
		t.Error("allocator must not be called for unknown patient")
	}
}

func TestGetWaitEstimate_UsesConfiguredDefaults(t *testing.T) {
	h, sched, _ := newTestHandler(t)

	if _, err := sched.Register(context.Background(), RegisterInput{Name: "First", Acuity: 2}); err != nil {
		t.Fatalf("register: %v", err)
	}
	second, _ := sched.Register(context.Background(), RegisterInput{Name: "Second", Acuity: 3})

	rec := doJSON(t, h.GetWaitEstimate, http.MethodGet, "/patients/x/eta", "", map[string]string{"id": second.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		ETAMinutes int `json:"eta_minutes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ETAMinutes != 30 { // 1 ahead * 30 avg / 1 room
		t.Errorf("expected 30 minutes, got %d", resp.ETAMinutes)
	}
}
