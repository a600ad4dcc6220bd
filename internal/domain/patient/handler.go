package patient

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erflow/erflow/internal/domain/bed"
	"github.com/erflow/erflow/pkg/pagination"
)

// BedAllocator is the slice of the bed registry the patient API needs to
// orchestrate bed assignment. The scheduler itself never calls it.
type BedAllocator interface {
	Occupy(ctx context.Context, bedID, patientID uuid.UUID) error
}

// EstimateConfig carries the wait-estimation defaults used when a request
// does not override them.
type EstimateConfig struct {
	RoomsAvailable    int
	AvgServiceMinutes int
}

type Handler struct {
	sched *Scheduler
	beds  BedAllocator
	est   EstimateConfig
}

func NewHandler(sched *Scheduler, beds BedAllocator, est EstimateConfig) *Handler {
	return &Handler{sched: sched, beds: beds, est: est}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListActivePatients)
	api.GET("/patients/queue", h.GetTriageQueue)
	api.GET("/patients/delayed", h.GetDelayedPatients)
	api.GET("/patients/next", h.GetNextAwaitingTriage)
	api.GET("/patients/status/:status", h.GetPatientsByStatus)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/eta", h.GetWaitEstimate)
	api.PATCH("/patients/:id/acuity", h.UpdateAcuity)
	api.PATCH("/patients/:id/status", h.UpdateStatus)
	api.PATCH("/patients/:id/bed", h.AssignBed)
	api.PATCH("/patients/:id/staff", h.AssignStaff)
	api.PATCH("/patients/:id/triage-notes", h.SetTriageNotes)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.sched.Register(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.sched.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListActivePatients(c echo.Context) error {
	patients, err := h.sched.ActivePatients(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	page := pagination.FromContext(c)
	lo, hi := page.Window(len(patients))
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(patients[lo:hi]), len(patients), page))
}

func (h *Handler) GetTriageQueue(c echo.Context) error {
	queue, err := h.sched.TriageQueue(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(queue))
}

func (h *Handler) GetDelayedPatients(c echo.Context) error {
	delayed, err := h.sched.DelayedPatients(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(delayed))
}

func (h *Handler) GetNextAwaitingTriage(c echo.Context) error {
	p, err := h.sched.NextAwaitingTriage(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatientsByStatus(c echo.Context) error {
	status := Status(c.Param("status"))
	patients, err := h.sched.PatientsByStatus(c.Request().Context(), status)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(patients))
}

func (h *Handler) GetWaitEstimate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rooms, _ := strconv.Atoi(c.QueryParam("rooms_available"))
	if rooms <= 0 {
		rooms = h.est.RoomsAvailable
	}
	avg, _ := strconv.Atoi(c.QueryParam("avg_service_minutes"))
	if avg <= 0 {
		avg = h.est.AvgServiceMinutes
	}
	minutes, err := h.sched.EstimateWaitMinutes(c.Request().Context(), id, rooms, avg)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id":  id,
		"eta_minutes": minutes,
	})
}

type updateAcuityRequest struct {
	Acuity int `json:"acuity"`
}

func (h *Handler) UpdateAcuity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateAcuityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.sched.UpdateAcuity(c.Request().Context(), id, req.Acuity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type updateStatusRequest struct {
	NewStatus Status `json:"new_status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.sched.UpdateStatus(c.Request().Context(), id, req.NewStatus)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type assignBedRequest struct {
	BedID uuid.UUID `json:"bed_id"`
}

// AssignBed applies both halves of a bed assignment: the bed registry occupies
// the bed and the scheduler records it on the patient. There is no two-phase
// commit between the two; on partial failure the caller retries the missing
// half.
func (h *Handler) AssignBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if _, err := h.sched.Get(ctx, id); err != nil {
		return toHTTPError(err)
	}
	if err := h.beds.Occupy(ctx, req.BedID, id); err != nil {
		return toHTTPError(err)
	}
	p, err := h.sched.AssignBed(ctx, id, req.BedID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type assignStaffRequest struct {
	NurseID     *uuid.UUID `json:"nurse_id"`
	PhysicianID *uuid.UUID `json:"physician_id"`
}

func (h *Handler) AssignStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignStaffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.sched.AssignStaff(c.Request().Context(), id, req.NurseID, req.PhysicianID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type triageNotesRequest struct {
	TriageNotes string `json:"triage_notes"`
}

func (h *Handler) SetTriageNotes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req triageNotesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.sched.SetTriageNotes(c.Request().Context(), id, req.TriageNotes)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, bed.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "bed not found")
	case errors.Is(err, ErrAcuityRange), errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func emptyIfNil(patients []*Patient) []*Patient {
	if patients == nil {
		return []*Patient{}
	}
	return patients
}
