package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MikeMC777/tienda-ecom/internal/config"
	"github.com/MikeMC777/tienda-ecom/internal/db"
	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/user"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "user").Logger()

	cfg := config.Load()

	pool, err := db.Connect(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	svc := user.NewService(user.NewPGRepo(pool), cfg.JWTSecret)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.NewMetrics("user").Middleware())
	registerRoutes(r, svc, cfg.JWTSecret)

	log.Info().Str("addr", cfg.UserSvcAddr).Msg("user-service listening")
	if err := r.Run(cfg.UserSvcAddr); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
