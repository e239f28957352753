package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/choko510/jirotter-sub000/internal/collab"
	"github.com/choko510/jirotter-sub000/internal/config"
	"github.com/choko510/jirotter-sub000/internal/database"
	"github.com/choko510/jirotter-sub000/internal/handler"
	"github.com/choko510/jirotter-sub000/internal/queue"
	"github.com/choko510/jirotter-sub000/internal/repository"
	"github.com/choko510/jirotter-sub000/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	shops := repository.NewShopRepo(db)
	histories := repository.NewHistoryRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Redis backs the shared lock store and the rate limiter; when it is
	// unreachable, locks fall back to the in-process table and rate
	// limiting is disabled
	rdb := config.NewRedisClient()
	var lockStore collab.LockStore
	if rdb != nil {
		lockStore = collab.NewRedisLockStore(rdb)
	} else {
		log.Printf("redis unavailable, using in-process lock store")
		lockStore = collab.NewMemoryLockStore()
	}

	hub := collab.NewHub(shops, lockStore, time.Duration(cfg.LockTTLSec)*time.Second)

	// change-history writer; reconnects on its own, never stops the server
	go func() {
		if err := queue.StartHistoryConsumer(histories); err != nil {
			log.Printf("history consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	healthHandler := handler.NewHealthHandler(db)
	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	shopHandler := handler.NewAdminShopHandler(shops, histories, hub)
	router.Register(e, cfg, healthHandler, authHandler, shopHandler, hub, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
