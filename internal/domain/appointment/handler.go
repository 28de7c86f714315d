package appointment

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/envelope"
	"github.com/clinicops/clinic/pkg/civil"
	"github.com/clinicops/clinic/pkg/pagination"
)

const defaultUpcoming = 10

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	staff := g.Group("/appointments", auth.RequireRole(auth.RoleFrontDesk, auth.RoleClinician))
	staff.GET("", h.List)
	staff.POST("", h.Create)
	staff.GET("/today", h.Today)
	staff.GET("/upcoming", h.Upcoming)
	staff.GET("/calendar", h.Calendar)
	staff.GET("/day/:date", h.Day)
	staff.GET("/:id", h.Get)
	staff.PUT("/:id", h.Update)
	staff.PATCH("/:id/status", h.UpdateStatus)
	staff.PATCH("/:id/payment-status", h.UpdatePaymentStatus)

	desk := g.Group("/appointments", auth.RequireRole(auth.RoleFrontDesk))
	desk.DELETE("/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return envelope.Created(c, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) UpdatePaymentStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PaymentStatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdatePaymentStatus(c.Request().Context(), id, in.PaymentStatus)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Limit: pg.Limit, Offset: pg.Offset}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}
	if v := c.QueryParam("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, Status(strings.TrimSpace(s)))
		}
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return envelope.OK(c, pagination.NewResponse(items, total, pg))
}

func queryDate(c echo.Context, name string) (civil.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return civil.Date{}, nil
	}
	d, err := civil.Parse(v)
	if err != nil {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" date")
	}
	return d, nil
}

func (h *Handler) Today(c echo.Context) error {
	items, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, items)
}

func (h *Handler) Upcoming(c echo.Context) error {
	limit := defaultUpcoming
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > pagination.MaxLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	items, err := h.svc.Upcoming(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return envelope.OK(c, items)
}

func (h *Handler) Calendar(c echo.Context) error {
	year, month, err := ParseMonth(c.QueryParam("month"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "month must be YYYY-MM")
	}
	grid, err := h.svc.Month(c.Request().Context(), year, month)
	if err != nil {
		return err
	}
	return envelope.OK(c, grid)
}

func (h *Handler) Day(c echo.Context) error {
	date, err := civil.Parse(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	items, err := h.svc.Day(c.Request().Context(), date)
	if err != nil {
		return err
	}
	return envelope.OK(c, items)
}
