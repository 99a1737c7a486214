package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Attestation AttestationConfig `mapstructure:"attestation"`
	Solana      SolanaConfig      `mapstructure:"solana"`
	Aptos       AptosConfig       `mapstructure:"aptos"`
	Transfer    TransferConfig    `mapstructure:"transfer"`
	Workers     WorkerConfig      `mapstructure:"workers"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AttestationConfig configures the attestation oracle client
type AttestationConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	Environment      string   `mapstructure:"environment"` // sandbox or mainnet
	Timeout          int      `mapstructure:"timeout"`     // request timeout in seconds
	MaxAttempts      int      `mapstructure:"max_attempts"`
	InitialDelayMs   int      `mapstructure:"initial_delay_ms"`
	MaxDelayMs       int      `mapstructure:"max_delay_ms"`
	GracePeriodMs    int      `mapstructure:"grace_period_ms"` // fixed wait before the first poll
	AttesterKeys     []string `mapstructure:"attester_keys"`   // hex-encoded oracle signer addresses
	VerifySignatures bool     `mapstructure:"verify_signatures"`
}

// SolanaConfig configures the Solana chain adapter
type SolanaConfig struct {
	RPCEndpoint             string `mapstructure:"rpc_endpoint"`
	FallbackRPCEndpoint     string `mapstructure:"fallback_rpc_endpoint"`
	MessageTransmitter      string `mapstructure:"message_transmitter"`    // program id
	TokenMessengerMinter    string `mapstructure:"token_messenger_minter"` // program id
	USDCMint                string `mapstructure:"usdc_mint"`
	WalletKeypairPath       string `mapstructure:"wallet_keypair_path"`
	FeeSponsorKeypairPath   string `mapstructure:"fee_sponsor_keypair_path"` // optional co-signer
	ComputeUnitLimit        int    `mapstructure:"compute_unit_limit"`
	ConfirmMaxRetries       int    `mapstructure:"confirm_max_retries"`
	ConfirmRetryDelayMs     int    `mapstructure:"confirm_retry_delay_ms"`
	EphemeralFundLamports   uint64 `mapstructure:"ephemeral_fund_lamports"`
	RefundFeeBufferLamports uint64 `mapstructure:"refund_fee_buffer_lamports"`
}

// AptosConfig configures the Aptos chain adapter
type AptosConfig struct {
	RESTEndpoint         string `mapstructure:"rest_endpoint"`
	TokenMessengerMinter string `mapstructure:"token_messenger_minter"` // package address
	MessageTransmitter   string `mapstructure:"message_transmitter"`    // package address
	USDCMetadata         string `mapstructure:"usdc_metadata"`          // fungible asset metadata object
	WalletKeyPath        string `mapstructure:"wallet_key_path"`
	TxTTLSeconds         int    `mapstructure:"tx_ttl_seconds"`
	MaxGasAmount         uint64 `mapstructure:"max_gas_amount"`
	GasUnitPrice         uint64 `mapstructure:"gas_unit_price"`
	ConfirmMaxRetries    int    `mapstructure:"confirm_max_retries"`
	ConfirmRetryDelayMs  int    `mapstructure:"confirm_retry_delay_ms"`
}

// TransferConfig bounds user-facing transfer parameters
type TransferConfig struct {
	MaxAmount     string `mapstructure:"max_amount"`     // USDC, decimal string
	TokenDecimals int    `mapstructure:"token_decimals"` // 6 for USDC
}

// WorkerConfig contains background worker configuration
type WorkerConfig struct {
	AttestationSweepEnabled  bool   `mapstructure:"attestation_sweep_enabled"`
	AttestationSweepSchedule string `mapstructure:"attestation_sweep_schedule"` // cron spec
	MaxResumesPerSweep       int    `mapstructure:"max_resumes_per_sweep"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "courier_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Attestation oracle defaults
	viper.SetDefault("attestation.environment", "sandbox")
	viper.SetDefault("attestation.timeout", 30)
	viper.SetDefault("attestation.max_attempts", 30)
	viper.SetDefault("attestation.initial_delay_ms", 2000)
	viper.SetDefault("attestation.max_delay_ms", 30000)
	viper.SetDefault("attestation.grace_period_ms", 5000)
	viper.SetDefault("attestation.verify_signatures", false)

	// Solana defaults (mainnet CCTP program ids)
	viper.SetDefault("solana.rpc_endpoint", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.message_transmitter", "CCTPmbSD7gX1bxKPAmg77w8oFzNFpaQiQUWD43TKaecd")
	viper.SetDefault("solana.token_messenger_minter", "CCTPiPYPc6AsJuwueEnWgSgucamXDZwBd53dQ11YiKX3")
	viper.SetDefault("solana.usdc_mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	viper.SetDefault("solana.compute_unit_limit", 200000)
	viper.SetDefault("solana.confirm_max_retries", 30)
	viper.SetDefault("solana.confirm_retry_delay_ms", 2000)
	viper.SetDefault("solana.ephemeral_fund_lamports", 5000000)
	viper.SetDefault("solana.refund_fee_buffer_lamports", 10000)

	// Aptos defaults
	viper.SetDefault("aptos.rest_endpoint", "https://fullnode.mainnet.aptoslabs.com/v1")
	viper.SetDefault("aptos.tx_ttl_seconds", 60)
	viper.SetDefault("aptos.max_gas_amount", 20000)
	viper.SetDefault("aptos.gas_unit_price", 100)
	viper.SetDefault("aptos.confirm_max_retries", 30)
	viper.SetDefault("aptos.confirm_retry_delay_ms", 1000)

	// Transfer defaults
	viper.SetDefault("transfer.max_amount", "10000")
	viper.SetDefault("transfer.token_decimals", 6)

	// Worker defaults
	viper.SetDefault("workers.attestation_sweep_enabled", true)
	viper.SetDefault("workers.attestation_sweep_schedule", "@every 1m")
	viper.SetDefault("workers.max_resumes_per_sweep", 10)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
}

// overrideFromEnv maps a few well-known flat env vars onto nested keys
func overrideFromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		viper.Set("database.url", v)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		viper.Set("redis.host", v)
	}
	if v := os.Getenv("ATTESTATION_BASE_URL"); v != "" {
		viper.Set("attestation.base_url", v)
	}
	if v := os.Getenv("SOLANA_RPC_ENDPOINT"); v != "" {
		viper.Set("solana.rpc_endpoint", v)
	}
	if v := os.Getenv("APTOS_REST_ENDPOINT"); v != "" {
		viper.Set("aptos.rest_endpoint", v)
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if cfg.Attestation.MaxAttempts <= 0 {
		return fmt.Errorf("attestation max_attempts must be positive")
	}
	if cfg.Attestation.InitialDelayMs <= 0 || cfg.Attestation.MaxDelayMs < cfg.Attestation.InitialDelayMs {
		return fmt.Errorf("attestation delays misconfigured: initial=%dms max=%dms",
			cfg.Attestation.InitialDelayMs, cfg.Attestation.MaxDelayMs)
	}
	if cfg.Solana.RPCEndpoint == "" {
		return fmt.Errorf("solana RPC endpoint is required")
	}
	if cfg.Aptos.RESTEndpoint == "" {
		return fmt.Errorf("aptos REST endpoint is required")
	}
	if cfg.Transfer.TokenDecimals <= 0 {
		return fmt.Errorf("token decimals must be positive")
	}
	return nil
}
