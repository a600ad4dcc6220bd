package bed

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erflow/erflow/pkg/pagination"
)

type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/beds", h.CreateBed)
	api.GET("/beds", h.ListBeds)
	api.GET("/beds/match", h.FindMatch)
	api.GET("/beds/:id", h.GetBed)
	api.PATCH("/beds/:id/free", h.FreeBed)
	api.PATCH("/beds/:id/hold", h.HoldBed)
	api.PATCH("/beds/:id/occupy", h.OccupyBed)
	api.POST("/beds/assign", h.AssignBestAvailable)
	api.POST("/beds/transfer", h.TransferBestMatch)
	api.POST("/beds/swap", h.SwapPatients)
	api.POST("/beds/release/:patient_id", h.ReleasePatient)
}

type createBedRequest struct {
	BedType  string   `json:"bed_type"`
	Section  string   `json:"section"`
	Features []string `json:"features"`
}

func (h *Handler) CreateBed(c echo.Context) error {
	var req createBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.BedType == "" || req.Section == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bed_type and section are required")
	}
	b, err := h.reg.AddBed(c.Request().Context(), req.BedType, req.Section, req.Features)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	filter := Filter{
		Status:  Status(c.QueryParam("status")),
		BedType: c.QueryParam("bed_type"),
		Section: c.QueryParam("section"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed status")
	}
	beds, err := h.reg.ListBeds(c.Request().Context(), filter)
	if err != nil {
		return bedHTTPError(err)
	}
	page := pagination.FromContext(c)
	lo, hi := page.Window(len(beds))
	window := beds[lo:hi]
	if window == nil {
		window = []*Bed{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(window, len(beds), page))
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.reg.Get(c.Request().Context(), id)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) FreeBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.reg.FreeBed(c.Request().Context(), id)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type holdBedRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
}

func (h *Handler) HoldBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req holdBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.reg.HoldBed(c.Request().Context(), id, req.PatientID)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type occupyBedRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) OccupyBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req occupyBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	if err := h.reg.Occupy(c.Request().Context(), id, req.PatientID); err != nil {
		return bedHTTPError(err)
	}
	b, err := h.reg.Get(c.Request().Context(), id)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) FindMatch(c echo.Context) error {
	constraints := Constraints{
		BedType: c.QueryParam("bed_type"),
		Section: c.QueryParam("section"),
	}
	if f := c.QueryParams()["feature"]; len(f) > 0 {
		constraints.Features = f
	}
	b, err := h.reg.FindMatch(c.Request().Context(), constraints)
	if err != nil {
		return bedHTTPError(err)
	}
	if b == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, b)
}

type placementRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Constraints
}

func (h *Handler) AssignBestAvailable(c echo.Context) error {
	var req placementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	b, err := h.reg.AssignBestAvailable(c.Request().Context(), req.PatientID, req.Constraints)
	if err != nil {
		return bedHTTPError(err)
	}
	if b == nil {
		return echo.NewHTTPError(http.StatusConflict, "no matching open bed")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) TransferBestMatch(c echo.Context) error {
	var req placementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	t, err := h.reg.TransferBestMatch(c.Request().Context(), req.PatientID, req.Constraints)
	if err != nil {
		return bedHTTPError(err)
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusConflict, "no matching open bed")
	}
	return c.JSON(http.StatusOK, t)
}

type swapRequest struct {
	BedA uuid.UUID `json:"bed_a"`
	BedB uuid.UUID `json:"bed_b"`
}

func (h *Handler) SwapPatients(c echo.Context) error {
	var req swapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientA, patientB, err := h.reg.Swap(c.Request().Context(), req.BedA, req.BedB)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"bed_a": req.BedA, "patient_a": patientA,
		"bed_b": req.BedB, "patient_b": patientB,
	})
}

func (h *Handler) ReleasePatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	bedID, err := h.reg.ReleasePatient(c.Request().Context(), patientID)
	if err != nil {
		return bedHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"freed_bed":  bedID,
	})
}

func bedHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "bed not found")
	case errors.Is(err, ErrNotOccupied):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
