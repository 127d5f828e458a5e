package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MikeMC777/tienda-ecom/internal/address"
	"github.com/MikeMC777/tienda-ecom/internal/cart"
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
	"github.com/MikeMC777/tienda-ecom/internal/config"
	"github.com/MikeMC777/tienda-ecom/internal/db"
	"github.com/MikeMC777/tienda-ecom/internal/events"
	"github.com/MikeMC777/tienda-ecom/internal/httpx"
	"github.com/MikeMC777/tienda-ecom/internal/order"
	"github.com/MikeMC777/tienda-ecom/internal/payment"
	"github.com/MikeMC777/tienda-ecom/internal/stats"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "checkout").Logger()

	cfg := config.Load()

	pool, err := db.Connect(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	pub := events.NewPublisher(cfg.KafkaBrokers, cfg.OrderTopic)
	if pub != nil {
		defer pub.Close()
		log.Info().Str("topic", cfg.OrderTopic).Msg("order events enabled")
	}

	products := catalog.NewPGRepo(pool)
	carts := cart.NewPGRepo(pool)
	addresses := address.NewPGRepo(pool)

	cartSvc := cart.NewService(carts, products)
	orderSvc := order.NewService(order.NewPGRepo(pool), carts, products, addresses, nil, pub, log)

	var pay *payment.Client
	if cfg.PaymentBaseURL != "" {
		pay = payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	}

	deps := &handlerDeps{
		carts:         cartSvc,
		orders:        orderSvc,
		addresses:     addresses,
		stats:         stats.NewPGRepo(pool),
		pay:           pay,
		webhookSecret: cfg.PaymentWebhookSecret,
		log:           log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.NewMetrics("checkout").Middleware())
	registerRoutes(r, deps, cfg.JWTSecret)

	log.Info().Str("addr", cfg.CheckoutSvcAddr).Msg("checkout-service listening")
	if err := r.Run(cfg.CheckoutSvcAddr); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
