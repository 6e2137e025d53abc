package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"nest/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// problems collects every invalid field so one run reports them all.
type problems []error

func (p *problems) check(ok bool, field, format string, args ...interface{}) {
	if !ok {
		*p = append(*p, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(p...))
}

func validPort(port int) bool { return port >= 1 && port <= 65535 }

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ValidateStatic checks settings every command depends on. The admin token is
// left to ValidateServe since migrate and export never serve HTTP.
func ValidateStatic(cfg *Config) error {
	var p problems

	s := cfg.Server
	p.check(validPort(s.Port), "server.port", "must be between 1 and 65535, got %d", s.Port)
	p.check(s.ReadTimeout > 0, "server.read_timeout", "must be positive")
	p.check(s.WriteTimeout > 0, "server.write_timeout", "must be positive")
	p.check(s.RequestTimeout >= 0, "server.request_timeout", "must not be negative")
	p.check(s.BaseURL == "" || hasAnyPrefix(s.BaseURL, "http://", "https://"),
		"server.base_url", "must start with http:// or https://")

	in := cfg.Inbox
	p.check(in.MaxBodySize > 0, "inbox.max_body_size", "must be positive")
	p.check(in.MaxLimit >= 1, "inbox.max_limit", "must be positive")
	p.check(in.DefaultLimit >= 1 && in.DefaultLimit <= in.MaxLimit,
		"inbox.default_limit", "must be between 1 and %d, got %d", in.MaxLimit, in.DefaultLimit)

	p.check(cfg.Cache.BinCapacity > 0, "cache.bin_capacity", "must be positive, got %d", cfg.Cache.BinCapacity)

	pg := cfg.Database.Postgres
	if pg.URL != "" {
		p.check(hasAnyPrefix(pg.URL, "postgres://", "postgresql://"),
			"database.postgres.url", "must start with postgres:// or postgresql://")
	} else {
		p.check(pg.Host != "", "database.postgres.host", "host or url is required")
		p.check(validPort(pg.Port), "database.postgres.port", "must be between 1 and 65535, got %d", pg.Port)
		p.check(pg.User != "", "database.postgres.user", "is required")
		p.check(pg.DBName != "", "database.postgres.dbname", "is required")
		p.check(pg.SSLMode == "" || slices.Contains(sslModes, strings.ToLower(pg.SSLMode)),
			"database.postgres.sslmode", "%q is not one of %s", pg.SSLMode, strings.Join(sslModes, ", "))
	}
	p.check(pg.MaxOpenConns >= 0 && pg.MaxIdleConns >= 0, "database.postgres.max_open_conns", "pool sizes must not be negative")

	if r := cfg.Database.Redis; r.Enabled() {
		p.check(validPort(r.Port), "database.redis.port", "must be between 1 and 65535, got %d", r.Port)
	}

	validateNotifier(&p, cfg.Notifier)

	if cb := cfg.CircuitBreaker; cb.Enabled {
		p.check(cb.FailureRatio > 0 && cb.FailureRatio <= 1, "circuit_breaker.failure_ratio", "must be in (0, 1]")
	}

	return p.err()
}

func validateNotifier(p *problems, cfg NotifierConfig) {
	switch cfg.Type {
	case "", constants.NotifierNone, constants.NotifierRedis:
	case constants.NotifierKafka:
		p.check(len(cfg.Kafka.Brokers) > 0, "notifier.kafka.brokers", "at least one broker is required")
		for i, b := range cfg.Kafka.Brokers {
			p.check(b != "", fmt.Sprintf("notifier.kafka.brokers[%d]", i), "must not be empty")
		}
		p.check(cfg.Kafka.Topic != "", "notifier.kafka.topic", "is required")
	default:
		p.check(false, "notifier.type", "unknown notifier %q (supported: none, kafka, redis)", cfg.Type)
	}
}

func ValidateServe(cfg *Config) error {
	if cfg.Inbox.AdminToken == "" {
		return &ValidationError{Field: "inbox.admin_token", Message: "admin token is required"}
	}
	return nil
}
