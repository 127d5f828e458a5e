package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MikeMC777/tienda-ecom/internal/cache"
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
	"github.com/MikeMC777/tienda-ecom/internal/config"
	"github.com/MikeMC777/tienda-ecom/internal/db"
	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/review"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "catalog").Logger()

	cfg := config.Load()

	pool, err := db.Connect(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	var products catalog.Repository = catalog.NewPGRepo(pool)
	if cfg.RedisAddr != "" {
		ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
		products = catalog.NewCached(products, cache.New(cfg.RedisAddr, "catalog"), ttl, log)
		log.Info().Str("redis", cfg.RedisAddr).Dur("ttl", ttl).Msg("listing cache enabled")
	}
	reviews := review.NewPGRepo(pool)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.NewMetrics("catalog").Middleware())
	registerRoutes(r, products, reviews, cfg.JWTSecret)

	log.Info().Str("addr", cfg.CatalogSvcAddr).Msg("catalog-service listening")
	if err := r.Run(cfg.CatalogSvcAddr); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
