package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/choko510/jirotter-sub000/internal/collab"
	"github.com/choko510/jirotter-sub000/internal/model"
	"github.com/choko510/jirotter-sub000/internal/queue"
	"github.com/choko510/jirotter-sub000/internal/repository"
	queue_publisher "github.com/choko510/jirotter-sub000/internal/service"
)

// AdminShopHandler serves the shop directory to the editor: bulk listing,
// the single-field PATCH used when a client's channel is down, and the
// per-shop change history.
type AdminShopHandler struct {
	Shops     *repository.ShopRepo
	Histories *repository.HistoryRepo
	Hub       *collab.Hub
}

func NewAdminShopHandler(shops *repository.ShopRepo, histories *repository.HistoryRepo, hub *collab.Hub) *AdminShopHandler {
	if shops == nil || histories == nil || hub == nil {
		panic("nil dependency passed to NewAdminShopHandler")
	}
	return &AdminShopHandler{Shops: shops, Histories: histories, Hub: hub}
}

// ListShops handles GET /api/v1/admin/shops?limit=&offset=.
func (h *AdminShopHandler) ListShops(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shops, err := h.Shops.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"shops": shops})
}

// PatchShop handles PATCH /api/v1/admin/shops/:id with body {field: value}.
// This is the mutation path clients fall back to when the channel is down;
// it bypasses row locking entirely (accepted degradation of the protocol),
// so the committed change is re-broadcast to channel clients to keep them
// converged on the database state.
func (h *AdminShopHandler) PatchShop(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body) != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body must contain exactly one field"})
	}
	var field string
	var raw any
	for k, v := range body {
		field, raw = k, v
	}
	value, err := collab.NormalizeFieldValue(field, raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	before, err := h.Shops.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrShopNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "shop not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	updated, err := h.Shops.UpdateField(ctx, id, field, value)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	editorID, editorName := currentEditor(c)
	h.Hub.NotifyFieldUpdated(id, field, value, editorName)

	event := queue.FieldUpdatedEvent{
		ShopID:     id,
		Field:      field,
		OldValue:   model.ShopFieldString(before, field),
		NewValue:   model.FieldValueString(value),
		EditorID:   editorID,
		EditorName: editorName,
		UpdatedAt:  updated.UpdatedAt.UTC().Format(time.RFC3339),
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishFieldUpdated(pctx, event)
	}()

	return c.JSON(http.StatusOK, updated)
}

// ShopHistory handles GET /api/v1/admin/shops/:id/history?limit=.
func (h *AdminShopHandler) ShopHistory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Histories.ListByShop(ctx, id, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "history query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": entries})
}

// currentEditor reads the authenticated identity the JWT middleware stored.
func currentEditor(c echo.Context) (uint64, string) {
	var id uint64
	if v, ok := c.Get("user_id").(float64); ok {
		id = uint64(v)
	}
	name, _ := c.Get("username").(string)
	return id, name
}

