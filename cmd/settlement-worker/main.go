package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/config"
	"github.com/nestora/nestora-api/internal/domain/account"
	"github.com/nestora/nestora-api/internal/domain/hold"
	"github.com/nestora/nestora-api/internal/domain/notify"
	"github.com/nestora/nestora-api/internal/domain/usage"
	"github.com/nestora/nestora-api/internal/domain/wallet"
	"github.com/nestora/nestora-api/internal/pkg/cache"
	"github.com/nestora/nestora-api/internal/pkg/database"
	"github.com/nestora/nestora-api/internal/pkg/email"
	"github.com/nestora/nestora-api/internal/pkg/payrail"
)

const releaseBatchSize = 100

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Msg("Starting settlement-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	store := cache.NewRedisStore(rdb, "nestora")

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

	accountRepo := account.NewRepository(db)
	notifyRepo := notify.NewRepository(db)
	gate := notify.NewGate(store)
	dispatcher := notify.NewDispatcher(accountRepo, emailService, gate, notifyRepo)

	destinations := &payoutDestinationAdapter{accounts: accountRepo}

	walletService := wallet.NewService(wallet.NewRepository(db), dispatcher)
	holdService := hold.NewService(hold.NewRepository(db), rail, destinations, dispatcher,
		time.Duration(cfg.HoldWindowDays)*24*time.Hour)
	usageService := usage.NewService(usage.NewRepository(db), accountRepo, gate, dispatcher,
		cfg.UsageWarnWindow, cfg.UsageLockWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional: Redis pub/sub wake-up (polling still runs)
	wake := make(chan struct{}, 1)
	go subscribeWakeups(ctx, rdb, wake)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("settlement-worker stopped")
			return
		case <-wake:
			// immediate poll
		case <-ticker.C:
		}

		runOnce(ctx, walletService, holdService, usageService)
	}
}

// runOnce drives one settlement sweep: mature pending credits, pay out
// eligible holds, and roll monthly counters when the period flips.
func runOnce(ctx context.Context, wallets *wallet.Service, holds *hold.Service, counters *usage.Service) {
	start := time.Now()

	matured, err := wallets.ReleaseDue(ctx, releaseBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Pending credit sweep failed")
	}

	released, err := holds.ReleaseDue(ctx, releaseBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Hold release sweep failed")
	}

	reset, err := counters.ResetMonthly(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Monthly counter reset failed")
	}

	if matured > 0 || released > 0 || reset > 0 {
		log.Info().
			Int("credits_matured", matured).
			Int("holds_released", released).
			Int64("counters_reset", reset).
			Dur("took", time.Since(start)).
			Msg("Settlement sweep done")
	}
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	// Channel name can be anything; polling is still the main mechanism.
	sub := rdb.Subscribe(ctx, "settlement:due")
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			// non-blocking wake-up
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

// payoutDestinationAdapter resolves rail destinations from stored
// account payout tokens.
type payoutDestinationAdapter struct {
	accounts account.Repository
}

func (a *payoutDestinationAdapter) PayoutToken(ctx context.Context, payeeID uuid.UUID) (string, error) {
	acc, err := a.accounts.GetByID(ctx, payeeID)
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
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
