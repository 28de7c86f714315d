package clinical

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/domain/patient"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("/patients/:id", auth.RequireRole(auth.RoleClinician, auth.RoleFrontDesk))
	read.GET("/records/:kind", h.List)
	read.GET("/checkup", h.Checkup)

	write := g.Group("/patients/:id", auth.RequireRole(auth.RoleClinician))
	write.POST("/records/:kind", h.Add)
	write.PATCH("/records/:kind/:recordId", h.Update)
	write.DELETE("/records/:kind/:recordId", h.Delete)
}

// target reads the patient id and record kind shared by every records route.
func target(c echo.Context) (uuid.UUID, Kind, error) {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return uuid.Nil, "", err
	}
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return uuid.Nil, "", err
	}
	return patientID, kind, nil
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

func readBody(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return raw, nil
}

func (h *Handler) Add(c echo.Context) error {
	patientID, kind, err := target(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Add(c.Request().Context(), kind, patientID, raw)
	if err != nil {
		return err
	}
	return envelope.Created(c, rec)
}

func (h *Handler) Update(c echo.Context) error {
	patientID, kind, err := target(c)
	if err != nil {
		return err
	}
	id, err := recordID(c)
	if err != nil {
		return err
	}
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Update(c.Request().Context(), kind, patientID, id, raw)
	if err != nil {
		return err
	}
	return envelope.OK(c, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	patientID, kind, err := target(c)
	if err != nil {
		return err
	}
	id, err := recordID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), kind, patientID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	patientID, kind, err := target(c)
	if err != nil {
		return err
	}
	recs, err := h.svc.List(c.Request().Context(), kind, patientID)
	if err != nil {
		return err
	}
	return envelope.OK(c, recs)
}

func (h *Handler) Checkup(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	chk, err := h.svc.LegacyCheckup(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return envelope.OK(c, chk)
}
