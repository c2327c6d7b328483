package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port                     string
	Env                      string
	LogLevel                 string
	AllowedOrigins           []string
	StoreBackend             string
	SupabaseURL              string
	SupabaseKey              string
	SupabaseServiceRole      string
	SupabaseJWTSecret        string
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	StoreTimeoutSeconds      int
	StartDurationSeconds     int
	WSMaxMessageBytes        int64
	WSSendBuffer             int
	RelayRatePerSecond       float64
	RelayBurst               int
}

func Default() Config {
	return Config{
		Port:                     "8080",
		Env:                      "dev",
		LogLevel:                 "info",
		AllowedOrigins:           []string{"*"},
		StoreBackend:             BackendSupabase,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		StoreTimeoutSeconds:      30,
		StartDurationSeconds:     50,
		WSMaxMessageBytes:        1 << 20,
		WSSendBuffer:             64,
		RelayRatePerSecond:       30,
		RelayBurst:               60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("ENV"); raw != "" {
		cfg.Env = raw
	}
	if raw := firstEnv("BACKEND_LOG_LEVEL", "LOG_LEVEL"); raw != "" {
		cfg.LogLevel = strings.ToLower(raw)
	}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}
	if raw := os.Getenv("STORE_BACKEND"); raw != "" {
		cfg.StoreBackend = strings.ToLower(strings.TrimSpace(raw))
	}
	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.SupabaseKey = os.Getenv("SUPABASE_KEY")
	cfg.SupabaseServiceRole = os.Getenv("SUPABASE_SERVICE_ROLE")
	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("STORE_TIMEOUT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.StoreTimeoutSeconds = value
		}
	}
	if raw := os.Getenv("START_DURATION_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.StartDurationSeconds = value
		}
	}
	if raw := os.Getenv("WS_MAX_MESSAGE_BYTES"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			cfg.WSMaxMessageBytes = value
		}
	}
	if raw := os.Getenv("WS_SEND_BUFFER"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.WSSendBuffer = value
		}
	}
	if raw := os.Getenv("RELAY_RATE_PER_SECOND"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.RelayRatePerSecond = value
		}
	}
	if raw := os.Getenv("RELAY_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RelayBurst = value
		}
	}
	return cfg
}

// Validate checks that the selected store backend has what it needs.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			return errors.New("config: SUPABASE_URL is required")
		}
		if c.EffectiveSupabaseKey() == "" {
			return errors.New("config: SUPABASE_KEY or SUPABASE_SERVICE_ROLE is required")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required")
		}
		if c.SupabaseJWTSecret == "" {
			return errors.New("config: SUPABASE_JWT_SECRET is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return errors.New("config: unknown STORE_BACKEND " + strconv.Quote(c.StoreBackend))
	}
	return nil
}

// EffectiveSupabaseKey prefers the service role key.
func (c Config) EffectiveSupabaseKey() string {
	if c.SupabaseServiceRole != "" {
		return c.SupabaseServiceRole
	}
	return c.SupabaseKey
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
