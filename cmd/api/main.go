package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sidrive/sidrive-api/internal/config"
	"github.com/sidrive/sidrive-api/internal/domain/order"
	"github.com/sidrive/sidrive-api/internal/domain/payment"
	"github.com/sidrive/sidrive-api/internal/domain/payout"
	"github.com/sidrive/sidrive-api/internal/domain/reconcile"
	"github.com/sidrive/sidrive-api/internal/domain/settlement"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/middleware"
	"github.com/sidrive/sidrive-api/internal/pkg/database"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/jwt"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
	pkgresponse "github.com/sidrive/sidrive-api/internal/pkg/response"
	"github.com/sidrive/sidrive-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Bool("midtrans_production", cfg.MidtransIsProduction).
		Str("server_key", midtrans.KeyPreview(cfg.MidtransServerKey)).
		Msg("Starting Sidrive payments API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
		ConnMaxIdleTime: cfg.DBConnMaxIdle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, 15*time.Minute)

	gateway := midtrans.NewClient(midtrans.Config{
		ServerKey: cfg.MidtransServerKey,
		SnapURL:   cfg.MidtransSnapURL,
		APIURL:    cfg.MidtransAPIURL,
		IrisURL:   cfg.MidtransIrisURL,
		FinishURL: cfg.MidtransFinishURL,
		Timeout:   cfg.MidtransTimeout,
	})

	// ---------- Event sinks ----------
	fanout := events.NewFanout(5*time.Second,
		events.NewRedisPublisher(redis, cfg.EventsRedisChannel),
		events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic),
	)
	defer fanout.Close()

	var archive *storage.NotificationArchive
	if cfg.ArchiveEnabled {
		r2, err := storage.NewR2Storage(context.Background(), storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		archive = storage.NewNotificationArchive(r2, "midtrans")
	}

	// ---------- Repositories ----------
	ledger := wallet.NewLedger(db, cfg.PlatformWalletID)
	orderRepo := order.NewRepository(db)
	driverRepo := payment.NewDriverRepository(db)
	payoutRepo := payout.NewRepository(db)

	// ---------- Services ----------
	webhookService := webhook.NewService(cfg.MidtransServerKey, map[webhook.Flow]webhook.FlowHandler{
		webhook.FlowOrderPayment: order.NewPaymentFlow(orderRepo, ledger),
		webhook.FlowTopup:        wallet.NewTopupFlow(ledger),
		webhook.FlowSettlement:   settlement.NewFlow(ledger),
	}, fanout, archive)
	paymentService := payment.NewService(gateway, orderRepo, ledger, driverRepo)
	payoutService := payout.NewService(payoutRepo, ledger, gateway, fanout, cfg.PayoutMinAmount)

	reconcileWorker := reconcile.NewWorker(orderRepo, ledger, gateway, webhookService, reconcile.Config{
		Interval:   cfg.ReconcileInterval,
		StaleAfter: cfg.ReconcileStaleAfter,
		BatchSize:  cfg.ReconcileBatchSize,
	})
	reconcileWorker.Start()
	defer reconcileWorker.Stop()

	// ---------- Handlers ----------
	webhookHandler := webhook.NewHandler(webhookService)
	paymentHandler := payment.NewHandler(paymentService)
	payoutHandler := payout.NewHandler(payoutService)

	r := newRouter(routerDeps{
		webhooks:       webhookHandler,
		payments:       paymentHandler,
		payouts:        payoutHandler,
		jwt:            jwtService,
		allowedOrigins: cfg.AllowedOrigins,
		metricsEnabled: cfg.MetricsEnabled,
		ping:           db.PingContext,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MidtransTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type routerDeps struct {
	webhooks       *webhook.Handler
	payments       *payment.Handler
	payouts        *payout.Handler
	jwt            *jwt.Service
	allowedOrigins []string
	metricsEnabled bool
	ping           func(ctx context.Context) error
}

func newRouter(d routerDeps) chi.Router {
	authMiddleware := middleware.Auth(d.jwt)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	if d.metricsEnabled {
		r.Use(middleware.Metrics)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.ping(r.Context()); err != nil {
			pkgresponse.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})

	// Gateway callbacks carry no bearer token and no browser origin.
	r.Mount("/webhooks", d.webhooks.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORSHandler(d.allowedOrigins))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Mount("/payments", d.payments.Routes())
		})

		r.Route("/admin/payouts", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin())
			r.Mount("/", d.payouts.Routes())
		})
	})

	return r
}
