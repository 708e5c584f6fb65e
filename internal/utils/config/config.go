package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dwarvesf/onchain-tracker/internal/types/environments"
)

type AppConfig struct {
	Environment         environments.Environment `validate:"oneof=production staging development test"`
	ApiServer           ApiServerConfig
	Postgres            DBConnection
	Chain               ChainConfig
	Reconciler          ReconcilerConfig
	Notifier            NotifierConfig
	Stats               StatsConfig
	UptimeWebhooks      UptimeWebhooksConfig
	ShutdownGracePeriod time.Duration `default:"30s" validate:"gt=0"`
}

type ApiServerConfig struct {
	Port           string `default:"8000"`
	AllowedOrigins string `default:"*"`
}

type DBConnection struct {
	Host string `validate:"required"`
	Port string `default:"5432"`
	User string `validate:"required"`
	Name string `validate:"required"`
	Pass string

	SSLMode string `default:"disable"`
}

// ChainConfig describes both upstream data sources and the addresses watched on each.
// EVMOverlapBlocks may not be shorter than EVMConfirmations, otherwise a record
// stored as pending drops out of the refetch window before it confirms.
type ChainConfig struct {
	APIKey          string
	EVMRPCURL       string   `default:"https://base-mainnet.g.alchemy.com/v2/" validate:"url"`
	SolanaRPCURL    string   `default:"https://solana-mainnet.g.alchemy.com/v2/" validate:"url"`
	EVMAddresses    []string `validate:"dive,required"`
	NonEVMAddresses []string `validate:"dive,required"`

	EVMConfirmations   uint64 `default:"12" validate:"gt=0"`
	EVMOverlapBlocks   uint64 `default:"12" validate:"gtefield=EVMConfirmations"`
	NonEVMOverlapSlots uint64 `default:"150" validate:"gt=0"`
	PageSize           int    `default:"50" validate:"gt=0,lte=1000"`
	MaxPages           int    `default:"4" validate:"gt=0"`
}

type ReconcilerConfig struct {
	PollInterval     time.Duration `default:"5m" validate:"gt=0"`
	FetchTimeout     time.Duration `default:"2m" validate:"gt=0"`
	BackoffThreshold int           `default:"3" validate:"gt=0"`
	MaxBackoff       time.Duration `default:"1h" validate:"gt=0"`
}

type NotifierConfig struct {
	WebhookURL string        `validate:"omitempty,url"`
	QueueSize  int           `default:"256" validate:"gt=0"`
	MaxRetries int           `default:"3" validate:"gte=0"`
	RetryWait  time.Duration `default:"2s"`
	Timeout    time.Duration `default:"10s"`
}

type StatsConfig struct {
	SnapshotInterval    time.Duration `default:"1h" validate:"gt=0"`
	SnapshotWindowHours int           `default:"1" validate:"gt=0"`
	RecentWindowHours   int           `default:"24" validate:"gt=0"`
}

// UptimeWebhooksConfig holds optional heartbeat URLs pinged after a job succeeds.
type UptimeWebhooksConfig struct {
	ReconcileEVMURL    string
	ReconcileNonEVMURL string
	SnapshotURL        string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	cfg := &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			Port:           os.Getenv("SERVER_PORT"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Chain: ChainConfig{
			APIKey:             firstEnv("API_KEY", "ALCHEMY_API_KEY"),
			EVMRPCURL:          os.Getenv("EVM_RPC_URL"),
			SolanaRPCURL:       os.Getenv("SOLANA_RPC_URL"),
			EVMAddresses:       envVarList("WATCHED_EVM_ADDRESSES"),
			NonEVMAddresses:    envVarList("WATCHED_NONEVM_ADDRESSES"),
			EVMConfirmations:   uint64(envVarAtoi("EVM_CONFIRMATIONS")),
			EVMOverlapBlocks:   uint64(envVarAtoi("EVM_OVERLAP_BLOCKS")),
			NonEVMOverlapSlots: uint64(envVarAtoi("NONEVM_OVERLAP_SLOTS")),
			PageSize:           envVarAtoi("FETCH_PAGE_SIZE"),
			MaxPages:           envVarAtoi("FETCH_MAX_PAGES"),
		},
		Reconciler: ReconcilerConfig{
			PollInterval:     envVarDuration("POLL_INTERVAL"),
			FetchTimeout:     envVarDuration("FETCH_TIMEOUT"),
			BackoffThreshold: envVarAtoi("BACKOFF_THRESHOLD"),
			MaxBackoff:       envVarDuration("MAX_BACKOFF"),
		},
		Notifier: NotifierConfig{
			WebhookURL: firstEnv("WEBHOOK_URL", "DISCORD_WEBHOOK"),
			QueueSize:  envVarAtoi("NOTIFIER_QUEUE_SIZE"),
			MaxRetries: envVarAtoi("NOTIFIER_MAX_RETRIES"),
		},
		Stats: StatsConfig{
			SnapshotInterval:    envVarDuration("SNAPSHOT_INTERVAL"),
			SnapshotWindowHours: envVarAtoi("SNAPSHOT_WINDOW_HOURS"),
			RecentWindowHours:   envVarAtoi("STATS_RECENT_WINDOW_HOURS"),
		},
		UptimeWebhooks: UptimeWebhooksConfig{
			ReconcileEVMURL:    os.Getenv("UPTIME_WEBHOOK_EVM"),
			ReconcileNonEVMURL: os.Getenv("UPTIME_WEBHOOK_NONEVM"),
			SnapshotURL:        os.Getenv("UPTIME_WEBHOOK_SNAPSHOT"),
		},
		ShutdownGracePeriod: envVarDuration("SHUTDOWN_GRACE_PERIOD"),
	}

	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// Validate checks the loaded configuration. It is called once at startup.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// EVMEndpoint is the EVM JSON-RPC URL with the API key appended.
func (c ChainConfig) EVMEndpoint() string {
	return withAPIKey(c.EVMRPCURL, c.APIKey)
}

// SolanaEndpoint is the non-EVM JSON-RPC URL with the API key appended.
func (c ChainConfig) SolanaEndpoint() string {
	return withAPIKey(c.SolanaRPCURL, c.APIKey)
}

func withAPIKey(baseURL, apiKey string) string {
	if apiKey == "" {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/") {
		return baseURL + apiKey
	}
	return baseURL + "/" + apiKey
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// envVarAtoi returns 0 for an unset variable so the default applies.
func envVarAtoi(envName string) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return 0
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarDuration(envName string) time.Duration {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return 0
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarList(envName string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(envName), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
