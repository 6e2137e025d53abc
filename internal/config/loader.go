package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"nest/internal/constants"
)

// LoadConfig reads configFile (optional) and applies environment overrides.
// With an empty configFile the service runs from defaults and environment only.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", "35s")
	viper.SetDefault("server.write_timeout", "35s")
	viper.SetDefault("server.request_timeout", constants.DefaultRequestTimeout.String())
	viper.SetDefault("server.base_url", "http://localhost:8000")

	viper.SetDefault("inbox.max_body_size", constants.DefaultMaxBodySize)
	viper.SetDefault("inbox.default_limit", constants.DefaultLimit)
	viper.SetDefault("inbox.max_limit", constants.MaxLimit)

	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.postgres.max_open_conns", constants.DefaultMaxOpenConns)
	viper.SetDefault("database.postgres.max_idle_conns", constants.DefaultMaxIdleConns)
	viper.SetDefault("database.postgres.conn_max_lifetime", constants.DefaultConnMaxLifetime.String())
	viper.SetDefault("database.postgres.connect_retries", 5)
	viper.SetDefault("database.run_migrations", true)

	viper.SetDefault("cache.bin_capacity", constants.DefaultBinCacheCapacity)

	viper.SetDefault("notifier.type", constants.NotifierNone)
	viper.SetDefault("notifier.kafka.topic", constants.DefaultNoticeTopic)
	viper.SetDefault("notifier.redis.channel_prefix", constants.DefaultRedisChannelPrefix)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("rate_limit.rps", 50)
	viper.SetDefault("rate_limit.burst", 100)
	viper.SetDefault("rate_limit.cleanup_interval", 60)
	viper.SetDefault("rate_limit.max_age", 300)

	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("circuit_breaker.min_requests", 10)

	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.sampler.type", "always")
	viper.SetDefault("tracing.sampler.param", 1.0)

	viper.SetDefault("archive.prefix", "nest/")
}

func bindEnvVariables() {
	viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")
	viper.BindEnv("server.base_url", "SERVER_BASE_URL", "BASE_URL")

	viper.BindEnv("inbox.admin_token", "INBOX_ADMIN_TOKEN", "ADMIN_TOKEN")
	viper.BindEnv("inbox.max_body_size", "INBOX_MAX_BODY_SIZE", "MAX_BODY_SIZE")
	viper.BindEnv("inbox.default_limit", "INBOX_DEFAULT_LIMIT")
	viper.BindEnv("inbox.max_limit", "INBOX_MAX_LIMIT")

	viper.BindEnv("database.postgres.url", "DATABASE_POSTGRES_URL", "DATABASE_URL")
	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")
	viper.BindEnv("database.postgres.max_open_conns", "DATABASE_POSTGRES_MAX_OPEN_CONNS")
	viper.BindEnv("database.postgres.max_idle_conns", "DATABASE_POSTGRES_MAX_IDLE_CONNS")
	viper.BindEnv("database.run_migrations", "DATABASE_RUN_MIGRATIONS")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("notifier.type", "NOTIFIER_TYPE")
	viper.BindEnv("notifier.kafka.topic", "NOTIFIER_KAFKA_TOPIC")
	viper.BindEnv("notifier.redis.channel_prefix", "NOTIFIER_REDIS_CHANNEL_PREFIX")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("circuit_breaker.enabled", "CIRCUIT_BREAKER_ENABLED")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")

	viper.BindEnv("archive.region", "ARCHIVE_REGION", "AWS_REGION")
	viper.BindEnv("archive.bucket", "ARCHIVE_BUCKET")
	viper.BindEnv("archive.prefix", "ARCHIVE_PREFIX")
	viper.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("NOTIFIER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Notifier.Kafka.Brokers = brokers
		}
	}

	cfg.Notifier.Type = strings.ToLower(strings.TrimSpace(cfg.Notifier.Type))
	cfg.Inbox.AdminToken = strings.TrimSpace(cfg.Inbox.AdminToken)

	return nil
}
