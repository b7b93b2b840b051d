package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr       = ":8080"
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultAuditQueue = 256
)

// Config holds process-wide settings, loaded once at startup and immutable
// for the process lifetime.
type Config struct {
	Addr           string
	DSN            string
	TokenSecret    string
	TokenIssuer    string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	AuditQueueSize int
}

// Load reads configuration from the environment, with an optional .env file
// for local development. The signing secret is required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:           envOr("AEGIS_ADDR", defaultAddr),
		DSN:            strings.TrimSpace(os.Getenv("AEGIS_PG_DSN")),
		TokenSecret:    strings.TrimSpace(os.Getenv("AEGIS_TOKEN_SECRET")),
		TokenIssuer:    envOr("AEGIS_TOKEN_ISSUER", "aegisid"),
		AccessTTL:      defaultAccessTTL,
		RefreshTTL:     defaultRefreshTTL,
		AuditQueueSize: defaultAuditQueue,
	}

	if cfg.TokenSecret == "" {
		return Config{}, errors.New("config: AEGIS_TOKEN_SECRET is required")
	}

	var err error
	if cfg.AccessTTL, err = durationOr("AEGIS_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = durationOr("AEGIS_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("AEGIS_AUDIT_QUEUE_SIZE")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid AEGIS_AUDIT_QUEUE_SIZE %q", raw)
		}
		cfg.AuditQueueSize = n
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return d, nil
}
