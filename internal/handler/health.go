package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/choko510/jirotter-sub000/internal/database"
)

// HealthHandler answers liveness and readiness probes. Liveness is
// unconditional; readiness checks the database, the one dependency every
// shop operation needs.
type HealthHandler struct {
	DB *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{DB: db}
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Ready(c echo.Context) error {
	if err := database.Ping(c.Request().Context(), h.DB); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "database unavailable"})
	}
	return c.String(http.StatusOK, "ok")
}
