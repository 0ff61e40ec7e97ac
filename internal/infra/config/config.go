package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	KYC          KYCSettings          `mapstructure:"kyc"`
	Orchestrator OrchestratorSettings `mapstructure:"orchestrator"`
	Moderation   ModerationSettings   `mapstructure:"moderation"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	ClaimGuardPrefix string        `mapstructure:"claim_guard_prefix"`
	ClaimGuardTTL    time.Duration `mapstructure:"claim_guard_ttl"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures Kafka producer and consumer group
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	Async         bool     `mapstructure:"async"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// KYCSettings configures the external verification provider client
type KYCSettings struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	RetryWaitMin   time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax   time.Duration `mapstructure:"retry_wait_max"`
	VerifierID     string        `mapstructure:"verifier_id"`
	StubMode       bool          `mapstructure:"stub_mode"`
	StubApproveAll bool          `mapstructure:"stub_approve_all"`
}

// OrchestratorSettings tunes claim processing and reconciliation sweeps
type OrchestratorSettings struct {
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	MaxInFlight     int           `mapstructure:"max_in_flight"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SweepGrace      time.Duration `mapstructure:"sweep_grace"`
	SweepBatchSize  int           `mapstructure:"sweep_batch_size"`
	ArchiveInterval time.Duration `mapstructure:"archive_interval"`
	ArchiveAfter    time.Duration `mapstructure:"archive_after"`
}

// ModerationSettings names the actor ids allowed to file cases and vote
// on appeals
type ModerationSettings struct {
	Moderators []string `mapstructure:"moderators"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	ClaimMaxAttempts  int           `mapstructure:"claim_max_attempts"`
	AppealMaxAttempts int           `mapstructure:"appeal_max_attempts"`
	WriteMaxAttempts  int           `mapstructure:"write_max_attempts"`
}

type TelemetrySettings struct {
	MetricsPort     int     `mapstructure:"metrics_port"`
	TracingEndpoint string  `mapstructure:"tracing_endpoint"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	ServiceName     string  `mapstructure:"service_name"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DIGITALID")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.claim_guard_prefix",
		"redis.claim_guard_ttl",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"kafka.consumer_group",
		"kyc.base_url",
		"kyc.api_key",
		"kyc.timeout",
		"kyc.retry_max",
		"kyc.retry_wait_min",
		"kyc.retry_wait_max",
		"kyc.verifier_id",
		"kyc.stub_mode",
		"kyc.stub_approve_all",
		"orchestrator.process_timeout",
		"orchestrator.max_in_flight",
		"orchestrator.max_attempts",
		"orchestrator.retry_base_delay",
		"orchestrator.retry_max_delay",
		"orchestrator.sweep_interval",
		"orchestrator.sweep_grace",
		"orchestrator.sweep_batch_size",
		"orchestrator.archive_interval",
		"orchestrator.archive_after",
		"telemetry.metrics_port",
		"telemetry.tracing_endpoint",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"moderation.moderators",
		"rate_limit.window_duration",
		"rate_limit.claim_max_attempts",
		"rate_limit.appeal_max_attempts",
		"rate_limit.write_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "digitalid-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.cors_origins", []string{"*"})
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "digitalid")
	v.SetDefault("postgres.password", "digitalid_password")
	v.SetDefault("postgres.database", "digitalid")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.claim_guard_prefix", "digitalid:claim:inflight")
	v.SetDefault("redis.claim_guard_ttl", "5m")
	v.SetDefault("redis.rate_limit_prefix", "digitalid:ratelimit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "digitalid")
	v.SetDefault("kafka.async", true)
	v.SetDefault("kafka.consumer_group", "digitalid-orchestrator")

	v.SetDefault("kyc.base_url", "http://localhost:8090")
	v.SetDefault("kyc.api_key", "")
	v.SetDefault("kyc.timeout", "30s")
	v.SetDefault("kyc.retry_max", 3)
	v.SetDefault("kyc.retry_wait_min", "500ms")
	v.SetDefault("kyc.retry_wait_max", "5s")
	v.SetDefault("kyc.verifier_id", "kyc-provider")
	v.SetDefault("kyc.stub_mode", false)
	v.SetDefault("kyc.stub_approve_all", true)

	v.SetDefault("orchestrator.process_timeout", "90s")
	v.SetDefault("orchestrator.max_in_flight", 16)
	v.SetDefault("orchestrator.max_attempts", 5)
	v.SetDefault("orchestrator.retry_base_delay", "200ms")
	v.SetDefault("orchestrator.retry_max_delay", "5s")
	v.SetDefault("orchestrator.sweep_interval", "1m")
	v.SetDefault("orchestrator.sweep_grace", "2m")
	v.SetDefault("orchestrator.sweep_batch_size", 100)
	v.SetDefault("orchestrator.archive_interval", "1h")
	v.SetDefault("orchestrator.archive_after", "24h")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.tracing_endpoint", "http://localhost:4317")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "digitalid-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("moderation.moderators", []string{})

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.claim_max_attempts", 5)
	v.SetDefault("rate_limit.appeal_max_attempts", 3)
	v.SetDefault("rate_limit.write_max_attempts", 30)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "DIGITALID_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
