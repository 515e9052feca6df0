// Package config loads service settings from the environment and an optional
// .env file using viper.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	ServerPort        string `mapstructure:"SERVER_PORT"`
	StorageBackend    string `mapstructure:"STORAGE_BACKEND"`
	SnapshotPath      string `mapstructure:"SNAPSHOT_PATH"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	SQLitePath        string `mapstructure:"SQLITE_PATH"`
	AuditLogPath      string `mapstructure:"AUDIT_LOG_PATH"`
	ReportDir         string `mapstructure:"REPORT_DIR"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes     int    `mapstructure:"JWT_TTL_MINUTES"`
	SaveMaxRetries    uint   `mapstructure:"SAVE_MAX_RETRIES"`
	DailyDepositLimit string `mapstructure:"DAILY_DEPOSIT_LIMIT"`
}

var keys = []string{
	"SERVER_PORT", "STORAGE_BACKEND", "SNAPSHOT_PATH", "DATABASE_URL", "SQLITE_PATH",
	"AUDIT_LOG_PATH", "REPORT_DIR", "JWT_SECRET", "JWT_TTL_MINUTES", "SAVE_MAX_RETRIES",
	"DAILY_DEPOSIT_LIMIT",
}

// LoadConfig reads configuration from environment variables, falling back to
// a .env file in path when present.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORAGE_BACKEND", BackendFile)
	viper.SetDefault("SNAPSHOT_PATH", "data.json")
	viper.SetDefault("SQLITE_PATH", "ledger.db")
	viper.SetDefault("AUDIT_LOG_PATH", "log.txt")
	viper.SetDefault("REPORT_DIR", ".")
	viper.SetDefault("JWT_TTL_MINUTES", 60)
	viper.SetDefault("SAVE_MAX_RETRIES", 3)
	viper.SetDefault("DAILY_DEPOSIT_LIMIT", "100000")

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "error", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))
	switch config.StorageBackend {
	case BackendFile, BackendPostgres, BackendSQLite:
	default:
		slog.Warn("unknown storage backend; falling back to file", "backend", config.StorageBackend)
		config.StorageBackend = BackendFile
	}
	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = 60
	}
	if config.SaveMaxRetries == 0 {
		config.SaveMaxRetries = 1
	}
	if _, parseErr := decimal.NewFromString(config.DailyDepositLimit); parseErr != nil {
		slog.Warn("invalid DAILY_DEPOSIT_LIMIT; using default", "value", config.DailyDepositLimit, "error", parseErr)
		config.DailyDepositLimit = "100000"
	}
	return
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// DepositLimit returns the per-user calendar-day deposit cap.
func (c Config) DepositLimit() decimal.Decimal {
	return decimal.RequireFromString(c.DailyDepositLimit)
}
