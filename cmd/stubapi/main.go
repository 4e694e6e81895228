package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"talktrack/internal/shared/config"
	"talktrack/internal/shared/telemetry"
	"talktrack/internal/stubapi"
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	if cfg.Env == "production" {
		log.Fatal("the stub backend is a development tool; refusing to start in production")
	}
	gin.SetMode(gin.ReleaseMode)

	server := stubapi.NewServer(stubapi.Options{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		StageDelay:      cfg.StageDelay,
		PollWindow:      time.Second,
	})
	server.SeedUser("dev", "dev@example.com", "dev")

	addr := ":" + cfg.Port
	telemetry.Info("stubapi.listening", map[string]any{"addr": addr})
	if err := server.Engine().Run(addr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
