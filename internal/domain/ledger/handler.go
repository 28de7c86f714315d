package ledger

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/domain/patient"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/envelope"
	"github.com/clinicops/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("/patients/:id", auth.RequireRole(auth.RoleFrontDesk, auth.RoleClinician))
	read.GET("/ledger", h.GetAccount)
	read.GET("/bills", h.ListBills)
	read.GET("/payments", h.ListPayments)

	write := g.Group("/patients/:id", auth.RequireRole(auth.RoleFrontDesk))
	write.POST("/bills", h.AddBill)
	write.DELETE("/bills/:billId", h.DeleteBill)
	write.POST("/payments", h.AddPayment)
	write.DELETE("/payments/:paymentId", h.DeletePayment)

	admin := g.Group("/patients/:id", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/ledger/reconcile", h.Reconcile)
}

func parseParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) GetAccount(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAccount(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) AddBill(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.AddBill(c.Request().Context(), patientID, in)
	if err != nil {
		return err
	}
	return envelope.Created(c, a)
}

func (h *Handler) DeleteBill(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	billID, err := parseParam(c, "billId")
	if err != nil {
		return err
	}
	a, err := h.svc.DeleteBill(c.Request().Context(), patientID, billID)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) AddPayment(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.AddPayment(c.Request().Context(), patientID, in)
	if err != nil {
		return err
	}
	return envelope.Created(c, a)
}

func (h *Handler) DeletePayment(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	paymentID, err := parseParam(c, "paymentId")
	if err != nil {
		return err
	}
	a, err := h.svc.DeletePayment(c.Request().Context(), patientID, paymentID)
	if err != nil {
		return err
	}
	return envelope.OK(c, a)
}

func (h *Handler) ListBills(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBills(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return envelope.OK(c, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListPayments(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return envelope.OK(c, pagination.NewResponse(items, total, pg))
}

// Reconcile answers 200 with the report when the totals agree and a
// ledger_drift failure envelope when they do not.
func (h *Handler) Reconcile(c echo.Context) error {
	patientID, err := patient.ParseID(c)
	if err != nil {
		return err
	}
	report, err := h.svc.Reconcile(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return envelope.OK(c, report)
}
