// Package config centralizes runtime configuration. Everything comes from
// the environment; Load fails fast so a misconfigured deploy dies at startup
// instead of on the first request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	OrdersTable      string
	UsersTable       string
	IdempotencyTable string

	// EventsQueueURL enables SQS event publishing when non-empty.
	EventsQueueURL string

	JWTSecret string
	JWTIssuer string

	// AllowPublicReads exposes GET /orders/:id without a credential.
	AllowPublicReads bool

	// StrictTransitions enforces the restricted status transition table.
	StrictTransitions bool

	IdempotencyTTL time.Duration

	// Addr is the listen address for RUN_LOCAL mode.
	Addr string
}

func Load() (*Config, error) {
	cfg := &Config{
		OrdersTable:      os.Getenv("ORDERS_TABLE"),
		UsersTable:       os.Getenv("USERS_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		EventsQueueURL:   os.Getenv("ORDER_EVENTS_QUEUE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
		Addr:             os.Getenv("ADDR"),
	}

	if cfg.OrdersTable == "" {
		return nil, fmt.Errorf("ORDERS_TABLE is required")
	}
	if cfg.UsersTable == "" {
		return nil, fmt.Errorf("USERS_TABLE is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	allowPublic, err := boolEnv("ALLOW_PUBLIC_READS", false)
	if err != nil {
		return nil, err
	}
	cfg.AllowPublicReads = allowPublic

	strict, err := boolEnv("STRICT_TRANSITIONS", false)
	if err != nil {
		return nil, err
	}
	cfg.StrictTransitions = strict

	ttlHours := 48
	if v := os.Getenv("IDEMPOTENCY_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL_HOURS: %q", v)
		}
		ttlHours = n
	}
	cfg.IdempotencyTTL = time.Duration(ttlHours) * time.Hour

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	return cfg, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}
