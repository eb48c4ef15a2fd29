package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/malwarebo/condopay/analytics"
	"github.com/malwarebo/condopay/api"
	"github.com/malwarebo/condopay/cache"
	"github.com/malwarebo/condopay/db"
	"github.com/malwarebo/condopay/middleware"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/simulator"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
	"github.com/malwarebo/condopay/webhooks"
	"github.com/spf13/cobra"
)

const (
	janitorInterval    = time.Hour
	webhookRetention   = 90 * 24 * time.Hour
	maxRequestBodySize = 1 << 20
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	printBanner()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStep("1/5", "Connecting to database...")
	database, err := db.CreateDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	if autoMigrate {
		if err := db.CreateSchemaMigrator(database.GetDB()).Up(); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	health := monitoring.CreateHealthService(Version)
	health.AddCheck("database", database.Ping)

	printStep("2/5", "Connecting to Redis...")
	var replayGuard cache.ReplayGuard = cache.CreateMemoryReplayGuard(cfg.Security.IdempotencyTTL)
	if cfg.Redis.Enabled() {
		redisCache, err := cache.CreateRedisCache(cfg.Redis)
		if err != nil {
			printWarning(fmt.Sprintf("Redis unavailable: %v (using in-memory replay guard)", err))
		} else {
			defer redisCache.Close()
			replayGuard = cache.CreateRedisReplayGuard(redisCache, cfg.Redis.TTL)
			health.AddOptionalCheck("redis", redisCache.Ping)
			printSuccess(fmt.Sprintf("Connected to Redis at %s", cfg.GetRedisAddr()))
		}
	} else {
		printWarning("Redis not configured (using in-memory replay guard)")
	}

	printStep("3/5", "Wiring services...")
	gormDB := database.GetDB()
	boletoStore := stores.CreateBoletoStore(gormDB)
	userStore := stores.CreateUserStore(gormDB)
	sequenceStore := stores.CreateSequenceStore(gormDB)
	auditStore := stores.CreateAuditStore(gormDB)
	webhookStore := stores.CreateWebhookStore(gormDB)
	idempotencyStore := stores.CreateIdempotencyStore(gormDB)

	calendar := services.CreateCalendar(cfg.Location(), time.Now)
	auditService := services.CreateAuditService(auditStore)
	tracker := services.CreateDelinquencyTracker(boletoStore, userStore, calendar)
	paymentService := services.CreatePaymentService(boletoStore, tracker, auditService, calendar)
	boletoService := services.CreateBoletoService(boletoStore, userStore, sequenceStore, tracker, auditService, calendar)
	pixService := services.CreatePixService(boletoStore, webhookStore, paymentService, auditService, calendar, cfg.Pix)
	userService := services.CreateUserService(userStore, tracker, auditService)

	var sim *simulator.Simulator
	if cfg.SimulatorEnabled() {
		sender := webhooks.CreateSender(cfg.Simulator.WebhookURL, cfg.Security.WebhookSecret)
		sim = simulator.CreateSimulator(boletoStore, simulator.CreateHTTPDeliverer(sender), cfg.Simulator)
		go sim.Run(ctx)
		printWarning(fmt.Sprintf("PIX simulator enabled, posting to %s", cfg.Simulator.WebhookURL))
	}

	printStep("4/5", "Initializing security...")
	jwtManager := security.CreateJWTManager(cfg.Security.JWTSecret, security.DefaultIssuer, security.DefaultAudience)
	var limiter *security.TieredRateLimiter
	if cfg.Security.RateLimitEnabled {
		limiter = security.CreateTieredRateLimiter(security.DefaultTiers(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst))
		defer limiter.Close()
	}

	router := api.NewRouter(api.RouterConfig{
		Boletos: api.CreateBoletoHandler(boletoService, paymentService, analytics.SlipPayee{
			Name:   cfg.Pix.MerchantName,
			City:   cfg.Pix.MerchantCity,
			PixKey: cfg.Pix.Key,
		}),
		Pix:              api.CreatePixHandler(pixService, sim),
		Users:            api.CreateUserHandler(userService),
		Health:           api.CreateHealthHandler(health),
		Auth:             middleware.CreateAuthMiddleware(jwtManager, limiter),
		Idempotency:      middleware.IdempotencyMiddleware(idempotencyStore, cfg.Security.IdempotencyTTL),
		Webhook:          middleware.WebhookSignatureMiddleware(cfg.Security.WebhookSecret, replayGuard),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		MaxBodyBytes:     maxRequestBodySize,
		SimulatorEnabled: sim != nil,
	})

	go runJanitor(ctx, idempotencyStore, webhookStore)

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	printStep("5/5", fmt.Sprintf("Listening on :%s (%s)", cfg.Server.Port, cfg.Environment))
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	printWarning("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	printSuccess("Server stopped")
	return nil
}

// runJanitor purges expired idempotency keys and old webhook ledger rows.
func runJanitor(ctx context.Context, idempotency *stores.IdempotencyStore, webhookEvents *stores.WebhookStore) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys, err := idempotency.CleanupExpired(ctx)
			if err != nil {
				utils.Warn(ctx, "idempotency cleanup failed", map[string]interface{}{"error": err.Error()})
			}
			events, err := webhookEvents.CleanupOld(ctx, webhookRetention)
			if err != nil {
				utils.Warn(ctx, "webhook cleanup failed", map[string]interface{}{"error": err.Error()})
			}
			if keys > 0 || events > 0 {
				utils.Info(ctx, "janitor purged records", map[string]interface{}{
					"idempotency_keys": keys,
					"webhook_events":   events,
				})
			}
		}
	}
}
