package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"streamprime-wallet-go/internal/access"
	"streamprime-wallet-go/internal/database"
	"streamprime-wallet-go/internal/formance"
	"streamprime-wallet-go/internal/gateway"
	"streamprime-wallet-go/internal/listener"
	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/otp"
	"streamprime-wallet-go/internal/store"
	"streamprime-wallet-go/internal/wallet"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// LedgerServices is what the offline tools need: storage, the wallet and the
// optional Formance mirror.
type LedgerServices struct {
	DbService *database.Service
	Ledger    *wallet.Ledger
	Mirror    *formance.Mirror
}

// Services wires every component the HTTP server runs
type Services struct {
	LedgerServices
	Gateway *gateway.Adapter
	Access  *access.Engine
	Session *otp.Session
	Sweeper *listener.RechargeSweeper

	redis *otp.RedisChallengeStore
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeLedger opens the database and builds the wallet. The mirror is
// connected only when enabled in config.
func InitializeLedger(ctx context.Context, cfg *models.Config) (*LedgerServices, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	opts := []wallet.Option{
		wallet.WithWelcomeBonus(cfg.Wallet.WelcomeBonus),
		wallet.WithMaxRetries(cfg.Wallet.MaxCasRetries),
	}

	var mirror *formance.Mirror
	if cfg.Formance.Enabled {
		mirror, err = formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("failed to connect ledger mirror: %w", err)
		}
		opts = append(opts, wallet.WithPublisher(mirror))
	}

	return &LedgerServices{
		DbService: dbService,
		Ledger:    wallet.NewLedger(dbService, opts...),
		Mirror:    mirror,
	}, nil
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	ledgerServices, err := InitializeLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services := &Services{LedgerServices: *ledgerServices}

	if err := services.initialize(ctx, cfg); err != nil {
		services.Close()
		return nil, err
	}
	return services, nil
}

func (s *Services) initialize(ctx context.Context, cfg *models.Config) error {
	db := s.DbService

	var provider gateway.Provider
	if cfg.Gateway.Enabled() {
		client, err := gateway.NewRazorpayClient(cfg.Gateway)
		if err != nil {
			return err
		}
		provider = client
	}
	s.Gateway = gateway.NewAdapter(cfg.Gateway, provider, s.Ledger, db,
		gateway.WithPendingTTL(cfg.Sweeper.PendingTTL))

	s.Access = access.NewEngine(db, s.Ledger, cfg.Wallet.ReuseWindow)

	var challenges store.ChallengeStore = db
	if cfg.OTP.Store == "redis" {
		redisStore, err := otp.NewRedisChallengeStore(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		s.redis = redisStore
		challenges = redisStore
	}

	sender, err := otp.NewSender(cfg.OTP)
	if err != nil {
		return err
	}
	issuer, err := otp.NewCredentialIssuer(cfg.Auth, nil)
	if err != nil {
		return err
	}
	s.Session = otp.NewSession(cfg.OTP, challenges, db, s.Ledger, sender, issuer)

	if cfg.Sweeper.Enabled && s.Gateway.Enabled() {
		s.Sweeper = listener.NewRechargeSweeper(listener.RechargeSweeperConfig{
			Pending:         db,
			Settler:         s.Gateway,
			PollingInterval: cfg.Sweeper.PollingInterval,
			MinAge:          cfg.Sweeper.MinAge,
			CleanupInterval: cfg.Sweeper.CleanupInterval,
			BatchSize:       cfg.Sweeper.BatchSize,
			Now:             s.Ledger.Now,
		})
	}

	zap.L().Info("Services initialized",
		zap.Bool("gateway_enabled", s.Gateway.Enabled()),
		zap.Bool("sweeper_enabled", s.Sweeper != nil),
		zap.Bool("mirror_enabled", s.Mirror != nil),
		zap.String("otp_store", cfg.OTP.Store),
		zap.String("sms_provider", cfg.OTP.Provider))
	return nil
}

func (s *LedgerServices) Close() {
	if s.DbService != nil {
		s.DbService.Close()
	}
}

func (s *Services) Close() {
	if s.Sweeper != nil {
		s.Sweeper.Stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	s.LedgerServices.Close()
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
