package bed

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
)

func newBedHandler(t *testing.T) (*Handler, *Registry) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	return NewHandler(reg), reg
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

func TestCreateBed(t *testing.T) {
	h, _ := newBedHandler(t)

	rec := doJSON(t, h.CreateBed, http.MethodPost, "/beds",
		`{"bed_type":"ICU","section":"ICU-1","features":["ventilator"]}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var b Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.BedType != "ICU" || b.Section != "ICU-1" || b.Status != StatusOpen {
		t.Errorf("unexpected bed payload: %+v", b)
	}
}

func TestCreateBed_MissingFields(t *testing.T) {
	h, _ := newBedHandler(t)
	rec := doJSON(t, h.CreateBed, http.MethodPost, "/beds", `{"section":"A1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListBeds_Envelope(t *testing.T) {
	h, reg := newBedHandler(t)
	for _, section := range []string{"A1", "A2", "A3"} {
		addBed(t, reg, "ED", section, nil)
	}

	rec := doJSON(t, h.ListBeds, http.MethodGet, "/beds?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data    []*Bed `json:"data"`
		Total   int    `json:"total"`
		HasMore bool   `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("unexpected envelope: total=%d page=%d has_more=%v", resp.Total, len(resp.Data), resp.HasMore)
	}
}

func TestListBeds_InvalidStatus(t *testing.T) {
	h, _ := newBedHandler(t)
	rec := doJSON(t, h.ListBeds, http.MethodGet, "/beds?status=BROKEN", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetBed_NotFound(t *testing.T) {
	h, _ := newBedHandler(t)
	rec := doJSON(t, h.GetBed, http.MethodGet, "/beds/x", "", map[string]string{"id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestFindMatch_Handler(t *testing.T) {
	h, reg := newBedHandler(t)
	icu := addBed(t, reg, "ICU", "ICU-1", []string{"ventilator"})

	rec := doJSON(t, h.FindMatch, http.MethodGet, "/beds/match?bed_type=ICU&feature=ventilator", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var b Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.ID != icu.ID {
		t.Error("expected the ICU bed")
	}
}

func TestFindMatch_NoContent(t *testing.T) {
	h, _ := newBedHandler(t)
	rec := doJSON(t, h.FindMatch, http.MethodGet, "/beds/match?bed_type=ICU", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestOccupyThenFreeBed(t *testing.T) {
	h, reg := newBedHandler(t)
	b := addBed(t, reg, "ED", "A1", nil)
	pid := uuid.New()

	rec := doJSON(t, h.OccupyBed, http.MethodPatch, "/beds/x/occupy",
		`{"patient_id":"`+pid.String()+`"}`, map[string]string{"id": b.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("occupy: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var occupied Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &occupied); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if occupied.Status != StatusOccupied || occupied.PatientID == nil || *occupied.PatientID != pid {
		t.Errorf("unexpected bed after occupy: %+v", occupied)
	}

	rec = doJSON(t, h.FreeBed, http.MethodPatch, "/beds/x/free", "", map[string]string{"id": b.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("free: expected 200, got %d", rec.Code)
	}
	var freed Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &freed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if freed.Status != StatusOpen || freed.PatientID != nil {
		t.Errorf("unexpected bed after free: %+v", freed)
	}
}

func TestOccupyBed_RequiresPatient(t *testing.T) {
	h, reg := newBedHandler(t)
	b := addBed(t, reg, "ED", "A1", nil)

	rec := doJSON(t, h.OccupyBed, http.MethodPatch, "/beds/x/occupy", `{}`, map[string]string{"id": b.ID.String()})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHoldBed_Handler(t *testing.T) {
	h, reg := newBedHandler(t)
	b := addBed(t, reg, "ED", "A1", nil)
	pid := uuid.New()

	rec := doJSON(t, h.HoldBed, http.MethodPatch, "/beds/x/hold",
		`{"patient_id":"`+pid.String()+`"}`, map[string]string{"id": b.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var held Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &held); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if held.Status != StatusHeld || held.PatientID == nil || *held.PatientID != pid {
		t.Errorf("unexpected bed after hold: %+v", held)
	}
}

func TestAssignBestAvailable_Handler(t *testing.T) {
	h, reg := newBedHandler(t)
	addBed(t, reg, "ICU", "ICU-1", []string{"ventilator"})
	pid := uuid.New()

	rec := doJSON(t, h.AssignBestAvailable, http.MethodPost, "/beds/assign",
		`{"patient_id":"`+pid.String()+`","bed_type":"ICU","features":["ventilator"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var b Bed
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Status != StatusOccupied || b.PatientID == nil || *b.PatientID != pid {
		t.Errorf("unexpected bed after assign: %+v", b)
	}
}

func TestAssignBestAvailable_NoMatchConflicts(t *testing.T) {
	h, _ := newBedHandler(t)
	rec := doJSON(t, h.AssignBestAvailable, http.MethodPost, "/beds/assign",
		`{"patient_id":"`+uuid.NewString()+`","bed_type":"ICU"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestTransferBestMatch_Handler(t *testing.T) {
	h, reg := newBedHandler(t)
	ed := addBed(t, reg, "ED", "A1", nil)
	icu := addBed(t, reg, "ICU", "ICU-1", nil)
	pid := uuid.New()
	if err := reg.Occupy(context.Background(), ed.ID, pid); err != nil {
		t.Fatalf("Occupy: %v", err)
	}

	rec := doJSON(t, h.TransferBestMatch, http.MethodPost, "/beds/transfer",
		`{"patient_id":"`+pid.String()+`","bed_type":"ICU"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tr Transfer
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if tr.FromBedID == nil || *tr.FromBedID != ed.ID || tr.ToBedID != icu.ID {
		t.Errorf("unexpected transfer: %+v", tr)
	}
}

func TestSwapPatients_NotOccupiedConflicts(t *testing.T) {
	h, reg := newBedHandler(t)
	a := addBed(t, reg, "ED", "A1", nil)
	b := addBed(t, reg, "ED", "A2", nil)
	if err := reg.Occupy(context.Background(), a.ID, uuid.New()); err != nil {
		t.Fatalf("Occupy: %v", err)
	}

	rec := doJSON(t, h.SwapPatients, http.MethodPost, "/beds/swap",
		`{"bed_a":"`+a.ID.String()+`","bed_b":"`+b.ID.String()+`"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestReleasePatient_Handler(t *testing.T) {
	h, reg := newBedHandler(t)
	b := addBed(t, reg, "ED", "A1", nil)
	pid := uuid.New()
	if err := reg.Occupy(context.Background(), b.ID, pid); err != nil {
		t.Fatalf("Occupy: %v", err)
	}

	rec := doJSON(t, h.ReleasePatient, http.MethodPost, "/beds/release/x", "", map[string]string{"patient_id": pid.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		FreedBed *uuid.UUID `json:"freed_bed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FreedBed == nil || *resp.FreedBed != b.ID {
		t.Error("expected the occupied bed reported freed")
	}
}
