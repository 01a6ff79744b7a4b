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
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/config"
	"github.com/nestora/nestora-api/internal/domain/account"
	"github.com/nestora/nestora-api/internal/domain/dispute"
	"github.com/nestora/nestora-api/internal/domain/hold"
	"github.com/nestora/nestora-api/internal/domain/notify"
	"github.com/nestora/nestora-api/internal/domain/usage"
	"github.com/nestora/nestora-api/internal/domain/wallet"
	"github.com/nestora/nestora-api/internal/middleware"
	"github.com/nestora/nestora-api/internal/pkg/cache"
	"github.com/nestora/nestora-api/internal/pkg/database"
	"github.com/nestora/nestora-api/internal/pkg/email"
	"github.com/nestora/nestora-api/internal/pkg/payrail"
	pkgresponse "github.com/nestora/nestora-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Nestora settlement API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	store := cache.NewRedisStore(redisClient, "nestora")

	rail := payrail.NewClient(payrail.Config{
		BaseURL: cfg.PayRailBaseURL,
		APIKey:  cfg.PayRailAPIKey,
		Timeout: cfg.PayRailTimeout,
	})

	emailService := email.NewService(email.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFromAddress,
		FromName:  cfg.EmailFromName,
	})
	defer emailService.Close()

	// ---------- Repositories ----------
	accountRepo := account.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	holdRepo := hold.NewRepository(db)
	disputeRepo := dispute.NewRepository(db)
	usageRepo := usage.NewRepository(db)
	notifyRepo := notify.NewRepository(db)

	// ---------- Notifications ----------
	gate := notify.NewGate(store)
	dispatcher := notify.NewDispatcher(accountRepo, emailService, gate, notifyRepo)

	// ---------- Services ----------
	destinations := &payoutDestinationAdapter{accounts: accountRepo}

	walletService := wallet.NewService(walletRepo, dispatcher)
	holdService := hold.NewService(holdRepo, rail, destinations, dispatcher,
		time.Duration(cfg.HoldWindowDays)*24*time.Hour)
	disputeService := dispute.NewService(disputeRepo, holdService, rail, destinations, dispatcher,
		dispute.Config{
			MaxCoveragePerCase: cfg.MaxCoveragePerCase,
			ResponseTTL:        cfg.DisputeResponseTTL,
			ResolveTTL:         cfg.DisputeResolveTTL,
		})
	usageService := usage.NewService(usageRepo, accountRepo, gate, dispatcher,
		cfg.UsageWarnWindow, cfg.UsageLockWindow)
	limitChecker := usage.NewLimitChecker(usageService)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	holdHandler := hold.NewHandler(holdService)
	disputeHandler := dispute.NewHandler(disputeService)
	usageHandler := usage.NewHandler(usageService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/wallets", walletHandler.Routes())
		r.Mount("/holds", holdHandler.Routes())
		r.Mount("/disputes", disputeHandler.Routes())
		r.Mount("/usage", usageHandler.Routes())

		// Capacity-gated consumption: refuses with a 429 before the
		// counter moves once the plan is exhausted.
		r.Route("/usage/consume", func(r chi.Router) {
			features := []usage.Feature{
				usage.FeatureActiveJobs,
				usage.FeatureInvoicesMonth,
				usage.FeatureLeadsMonth,
				usage.FeatureCustomers,
			}
			for _, f := range features {
				r.With(middleware.RequireFeatureCapacity(limitChecker, string(f))).
					Post("/"+string(f), usageHandler.Consume(f))
			}
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// payoutDestinationAdapter resolves rail destinations from stored
// account payout tokens, for both payouts and refunds.
type payoutDestinationAdapter struct {
	accounts account.Repository
}

func (a *payoutDestinationAdapter) PayoutToken(ctx context.Context, payeeID uuid.UUID) (string, error) {
	return a.token(ctx, payeeID)
}

func (a *payoutDestinationAdapter) RefundToken(ctx context.Context, payerID uuid.UUID) (string, error) {
	return a.token(ctx, payerID)
}

func (a *payoutDestinationAdapter) token(ctx context.Context, id uuid.UUID) (string, error) {
	acc, err := a.accounts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !acc.PayoutToken.Valid || acc.PayoutToken.String == "" {
		return "", hold.ErrNoDestination
	}
	return acc.PayoutToken.String, nil
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
