package inventory

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	read := g.Group("/inventory/api", auth.RequireRole(auth.RoleInventory, auth.RoleClinician, auth.RoleFrontDesk))
	read.GET("", h.ListItems)
	read.GET("/categories", h.Categories)
	read.GET("/summary", h.Summary)
	read.GET("/:id", h.GetItem)
	read.GET("/:id/movements", h.ListMovements)

	write := g.Group("/inventory/api", auth.RequireRole(auth.RoleInventory))
	write.POST("", h.CreateItem)
	write.PUT("/:id", h.UpdateItem)
	write.DELETE("/:id", h.DeleteItem)
	write.POST("/:id/add-stock", h.AddStock)
	write.POST("/:id/remove-stock", h.RemoveStock)
	write.POST("/:id/adjust-stock", h.AdjustStock)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return id, nil
}

func (h *Handler) CreateItem(c echo.Context) error {
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.CreateItem(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return envelope.Created(c, it)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	it, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, it)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListItems(c.Request().Context(), Filter{
		Category: c.QueryParam("category"),
		Type:     c.QueryParam("type"),
		Status:   StockStatus(c.QueryParam("status")),
		Search:   c.QueryParam("search"),
		Limit:    pg.Limit,
		Offset:   pg.Offset,
	})
	if err != nil {
		return err
	}
	return envelope.OK(c, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch ItemPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.UpdateItem(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return envelope.OK(c, it)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteItem(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddStock(c echo.Context) error {
	return h.stock(c, h.svc.AddStock)
}

func (h *Handler) RemoveStock(c echo.Context) error {
	return h.stock(c, h.svc.RemoveStock)
}

func (h *Handler) stock(c echo.Context, op func(ctx context.Context, id uuid.UUID, in StockInput) (*Item, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in StockInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := op(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, it)
}

func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AdjustInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.AdjustStock(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, it)
}

func (h *Handler) ListMovements(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMovements(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return envelope.OK(c, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Categories(c echo.Context) error {
	categories, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, categories)
}

func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, sum)
}
