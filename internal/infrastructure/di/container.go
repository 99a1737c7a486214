// Package di wires configuration, infrastructure and domain services into
// a single container consumed by main and the route setup.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/api/handlers"
	"github.com/courier-service/courier_service/internal/chains"
	aptoschain "github.com/courier-service/courier_service/internal/chains/aptos"
	solanachain "github.com/courier-service/courier_service/internal/chains/solana"
	"github.com/courier-service/courier_service/internal/domain/services/funding"
	"github.com/courier-service/courier_service/internal/domain/services/transfer"
	"github.com/courier-service/courier_service/internal/infrastructure/adapters/attestation"
	"github.com/courier-service/courier_service/internal/infrastructure/cache"
	"github.com/courier-service/courier_service/internal/infrastructure/config"
	"github.com/courier-service/courier_service/internal/infrastructure/database"
	"github.com/courier-service/courier_service/internal/infrastructure/repositories"
	"github.com/courier-service/courier_service/internal/workers/attestation_sweeper"
)

// Container holds every constructed dependency
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	SQLDB *sql.DB
	Redis cache.RedisClient

	Registry     *chains.Registry
	SolanaClient *solanachain.Client
	AptosClient  *aptoschain.Client
	Attestations *attestation.Client

	TransferRepo      *repositories.TransferRepository
	FundedAccountRepo *repositories.FundedAccountRepository
	ActionLogRepo     *repositories.ActionLogRepository

	FundingLedger   *funding.Ledger
	TransferService *transfer.Service
	Sweeper         *attestation_sweeper.Worker
}

// NewContainer builds the full dependency graph
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	sqlDB, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.SQLDB = sqlDB
	c.DB = sqlx.NewDb(sqlDB, "postgres")

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	c.Redis, err = cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	c.Registry = chains.NewDefaultRegistry()

	c.TransferRepo = repositories.NewTransferRepository(c.DB)
	c.FundedAccountRepo = repositories.NewFundedAccountRepository(c.DB)
	c.ActionLogRepo = repositories.NewActionLogRepository(c.DB)

	if err := c.buildChainClients(); err != nil {
		return nil, err
	}

	c.Attestations, err = attestation.NewClient(attestation.Config{
		BaseURL:          cfg.Attestation.BaseURL,
		Timeout:          time.Duration(cfg.Attestation.Timeout) * time.Second,
		MaxAttempts:      cfg.Attestation.MaxAttempts,
		InitialDelay:     time.Duration(cfg.Attestation.InitialDelayMs) * time.Millisecond,
		MaxDelay:         time.Duration(cfg.Attestation.MaxDelayMs) * time.Millisecond,
		GracePeriod:      time.Duration(cfg.Attestation.GracePeriodMs) * time.Millisecond,
		AttesterKeys:     cfg.Attestation.AttesterKeys,
		VerifySignatures: cfg.Attestation.VerifySignatures,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build attestation client: %w", err)
	}

	if err := c.buildServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) buildChainClients() error {
	cfg := c.Config
	var err error

	c.SolanaClient, err = solanachain.NewClient(
		cfg.Solana.RPCEndpoint,
		cfg.Solana.FallbackRPCEndpoint,
		cfg.Solana.ConfirmMaxRetries,
		time.Duration(cfg.Solana.ConfirmRetryDelayMs)*time.Millisecond,
		c.Logger,
	)
	if err != nil {
		return fmt.Errorf("build solana client: %w", err)
	}

	c.AptosClient, err = aptoschain.NewClient(aptoschain.Config{
		RESTEndpoint:      cfg.Aptos.RESTEndpoint,
		ConfirmMaxRetries: cfg.Aptos.ConfirmMaxRetries,
		ConfirmRetryDelay: time.Duration(cfg.Aptos.ConfirmRetryDelayMs) * time.Millisecond,
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("build aptos client: %w", err)
	}
	return nil
}

func (c *Container) buildServices() error {
	cfg := c.Config

	solanaWallet, err := solanachain.LoadWallet(cfg.Solana.WalletKeypairPath, c.Logger)
	if err != nil {
		return fmt.Errorf("load solana wallet: %w", err)
	}
	var feeSponsor *solanachain.Wallet
	if cfg.Solana.FeeSponsorKeypairPath != "" {
		feeSponsor, err = solanachain.LoadWallet(cfg.Solana.FeeSponsorKeypairPath, c.Logger)
		if err != nil {
			return fmt.Errorf("load fee sponsor wallet: %w", err)
		}
	}

	c.FundingLedger = funding.NewLedger(
		c.SolanaClient,
		solanaWallet,
		c.FundedAccountRepo,
		cfg.Solana.RefundFeeBufferLamports,
		c.Logger,
	)

	mtProgram, err := solana.PublicKeyFromBase58(cfg.Solana.MessageTransmitter)
	if err != nil {
		return fmt.Errorf("invalid message transmitter program id: %w", err)
	}
	tmmProgram, err := solana.PublicKeyFromBase58(cfg.Solana.TokenMessengerMinter)
	if err != nil {
		return fmt.Errorf("invalid token messenger minter program id: %w", err)
	}
	usdcMint, err := solana.PublicKeyFromBase58(cfg.Solana.USDCMint)
	if err != nil {
		return fmt.Errorf("invalid usdc mint: %w", err)
	}

	solanaGateway, err := solanachain.NewGateway(
		c.SolanaClient,
		solanaWallet,
		feeSponsor,
		c.FundingLedger,
		solanachain.GatewayConfig{
			MessageTransmitterProgram:   mtProgram,
			TokenMessengerMinterProgram: tmmProgram,
			USDCMint:                    usdcMint,
			ComputeUnitLimit:            uint32(cfg.Solana.ComputeUnitLimit),
			EphemeralFundLamports:       cfg.Solana.EphemeralFundLamports,
		},
		c.Registry,
		c.Logger,
	)
	if err != nil {
		return fmt.Errorf("build solana gateway: %w", err)
	}

	aptosAccount, err := aptoschain.LoadAccount(cfg.Aptos.WalletKeyPath)
	if err != nil {
		return fmt.Errorf("load aptos account: %w", err)
	}
	tmmPackage, err := aptoschain.ParseAddress(cfg.Aptos.TokenMessengerMinter)
	if err != nil {
		return fmt.Errorf("invalid aptos token messenger minter package: %w", err)
	}
	mtPackage, err := aptoschain.ParseAddress(cfg.Aptos.MessageTransmitter)
	if err != nil {
		return fmt.Errorf("invalid aptos message transmitter package: %w", err)
	}
	usdcMetadata, err := aptoschain.ParseAddress(cfg.Aptos.USDCMetadata)
	if err != nil {
		return fmt.Errorf("invalid aptos usdc metadata address: %w", err)
	}

	aptosGateway, err := aptoschain.NewGateway(
		c.AptosClient,
		aptosAccount,
		aptoschain.GatewayConfig{
			TokenMessengerMinterPackage: tmmPackage,
			MessageTransmitterPackage:   mtPackage,
			USDCMetadata:                usdcMetadata,
			MaxGasAmount:                cfg.Aptos.MaxGasAmount,
			GasUnitPrice:                cfg.Aptos.GasUnitPrice,
			TxTTL:                       time.Duration(cfg.Aptos.TxTTLSeconds) * time.Second,
		},
		c.Registry,
		c.Logger,
	)
	if err != nil {
		return fmt.Errorf("build aptos gateway: %w", err)
	}

	maxAmount, err := decimal.NewFromString(cfg.Transfer.MaxAmount)
	if err != nil {
		return fmt.Errorf("invalid transfer max amount %q: %w", cfg.Transfer.MaxAmount, err)
	}

	c.TransferService, err = transfer.NewService(
		c.TransferRepo,
		c.ActionLogRepo,
		c.FundingLedger,
		c.Attestations,
		map[string]transfer.Gateway{
			"solana": solanaGateway,
			"aptos":  aptosGateway,
		},
		c.Registry,
		c.Redis,
		transfer.Config{
			MaxAmount:  maxAmount,
			RunTimeout: 30 * time.Minute,
			LockTTL:    30 * time.Minute,
		},
		c.Logger,
	)
	if err != nil {
		return fmt.Errorf("build transfer service: %w", err)
	}

	c.Sweeper = attestation_sweeper.NewWorker(
		c.TransferRepo,
		c.TransferService,
		&attestation_sweeper.Config{
			Schedule:    cfg.Workers.AttestationSweepSchedule,
			MaxPerSweep: cfg.Workers.MaxResumesPerSweep,
		},
		c.Logger,
	)
	return nil
}

// HealthChecks returns readiness probes for every external dependency
func (c *Container) HealthChecks() map[string]handlers.CheckFunc {
	return map[string]handlers.CheckFunc{
		"database": func(ctx context.Context) error {
			return c.SQLDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return c.Redis.Ping(ctx)
		},
		"solana": func(ctx context.Context) error {
			return c.SolanaClient.Health(ctx)
		},
		"aptos": func(ctx context.Context) error {
			return c.AptosClient.Health(ctx)
		},
	}
}

// Close releases held connections
func (c *Container) Close() error {
	if err := c.Redis.Close(); err != nil {
		c.Logger.Warn("failed to close redis", zap.Error(err))
	}
	return c.SQLDB.Close()
}
