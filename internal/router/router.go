// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/choko510/jirotter-sub000/internal/collab"
	"github.com/choko510/jirotter-sub000/internal/config"
	"github.com/choko510/jirotter-sub000/internal/handler"
	"github.com/choko510/jirotter-sub000/internal/middleware"
)

// Register sets up every route of the shop-editor service: the public
// health check and auth endpoints, the admin shop API behind JWT + admin
// middleware, and the websocket collaboration endpoint. rdb may be nil, in
// which case rate limiting is a pass-through.
func Register(e *echo.Echo, cfg config.Config, health *handler.HealthHandler, a *handler.AuthHandler, shops *handler.AdminShopHandler, hub *collab.Hub, rdb *redis.Client) {
	e.GET("/healthz", health.Live)
	e.GET("/readyz", health.Ready)

	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// unauthenticated session management; rate limited to slow down
	// credential stuffing
	auth := e.Group("/api/v1/auth")
	auth.Use(rl)
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)
	auth.GET("/status", a.Status)

	// the editor's REST surface: bulk listing, single-field patch fallback
	// and change history, admins only
	admin := e.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireAdmin())
	admin.GET("/shops", shops.ListShops)
	admin.PATCH("/shops/:id", shops.PatchShop)
	admin.GET("/shops/:id/history", shops.ShopHistory)

	// the collaboration channel authenticates inside the handshake handler
	e.GET("/ws/shop-editor", hub.HandleWS(cfg.JWTSecret))
}
