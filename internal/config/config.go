package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	AppPort string

	DBDriver   string
	SQLitePath string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs    int
	ProfileTTLHours int

	WalletRPCURL string

	KafkaBrokers []string
	KafkaTopic   string

	LoansRefreshSchedule string
	SessionIdleTTL       time.Duration

	LogLevel  string
	LogFormat string
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("SQLITE_PATH", "bitguardian.db")
	v.SetDefault("MYSQL_HOST", "mysql")
	v.SetDefault("MYSQL_PORT", "3306")
	v.SetDefault("MYSQL_DB", "bitguardian")
	v.SetDefault("MYSQL_USER", "bitguardian")
	v.SetDefault("MYSQL_PASS", "bitguardian")
	v.SetDefault("REDIS_ADDR", "redis:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL_SECONDS", 300)
	v.SetDefault("PROFILE_TTL_HOURS", 0)
	v.SetDefault("WALLET_RPC_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "bitguardian.loans")
	v.SetDefault("LOANS_REFRESH_SCHEDULE", "@every 30s")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads .env (if any), then the yaml file named by CONFIG_FILE (if any),
// then the process environment, which wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := fromViper(v)
	// viper treats an empty env var as unset; an explicitly empty schedule disables the refresher
	if raw, ok := os.LookupEnv("LOANS_REFRESH_SCHEDULE"); ok && raw == "" {
		cfg.LoansRefreshSchedule = ""
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:    v.GetString("APP_PORT"),
		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		SQLitePath: v.GetString("SQLITE_PATH"),

		MySQLHost: v.GetString("MYSQL_HOST"),
		MySQLPort: v.GetString("MYSQL_PORT"),
		MySQLDB:   v.GetString("MYSQL_DB"),
		MySQLUser: v.GetString("MYSQL_USER"),
		MySQLPass: v.GetString("MYSQL_PASS"),

		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisDB:   v.GetInt("REDIS_DB"),

		IdempTTLSecs:    v.GetInt("IDEMPOTENCY_TTL_SECONDS"),
		ProfileTTLHours: v.GetInt("PROFILE_TTL_HOURS"),

		WalletRPCURL: v.GetString("WALLET_RPC_URL"),

		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		LoansRefreshSchedule: strings.TrimSpace(v.GetString("LOANS_REFRESH_SCHEDULE")),
		SessionIdleTTL:       v.GetDuration("SESSION_IDLE_TTL"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.RedisAddr == "" {
		return errors.New("missing REDIS_ADDR")
	}
	if c.IdempTTLSecs <= 0 {
		return errors.New("IDEMPOTENCY_TTL_SECONDS must be positive")
	}
	if c.ProfileTTLHours < 0 {
		return errors.New("PROFILE_TTL_HOURS must not be negative")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be a positive duration")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) ProfileTTL() time.Duration { return time.Duration(c.ProfileTTLHours) * time.Hour }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
