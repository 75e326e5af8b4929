package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/subosito/gotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	AppEnv   string
	LogLevel string
	LogDir   string
	Port     string

	StorageDriver string
	SQLitePath    string

	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	FullDSN string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	ExpiryNoticeDays int

	// OperatorToken unlocks the /api/admin endpoints; empty disables them.
	OperatorToken string
}

// Load reads .env (if present) into the environment and builds a Config
// from it.
func Load() *Config {
	_ = gotenv.Load()

	return &Config{
		AppEnv:   strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", ""),
		Port:     getEnv("APP_PORT", "8080"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite)),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/wallet.db"),

		DBUser:  getEnv("DB_USER", ""),
		DBPass:  getEnv("DB_PASS", ""),
		DBHost:  getEnv("DB_HOST", "localhost"),
		DBPort:  getEnv("DB_PORT", "3306"),
		DBName:  getEnv("DB_NAME", "wallet_tracker"),
		FullDSN: getEnv("FULL_DSN", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "wallet_tracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		ExpiryNoticeDays: getEnvInt("EXPIRY_NOTICE_DAYS", 7),

		OperatorToken: getEnv("OPERATOR_TOKEN", ""),
	}
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			errors = append(errors, "SQLITE_PATH cannot be empty when using sqlite storage")
		}
	case DriverMySQL:
		if c.FullDSN == "" && (c.DBUser == "" || c.DBHost == "" || c.DBName == "") {
			errors = append(errors, "DB_USER, DB_HOST and DB_NAME are required when FULL_DSN is not set")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid storage driver '%s': must be one of [%s %s %s]",
			c.StorageDriver, DriverMemory, DriverSQLite, DriverMySQL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExpiryNoticeDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid expiry notice days %d: must be at least 1", c.ExpiryNoticeDays))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// MySQLDSN returns FULL_DSN when set, otherwise a DSN assembled from the DB_*
// settings.
func (c *Config) MySQLDSN() string {
	if c.FullDSN != "" {
		return c.FullDSN
	}
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPass
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.MultiStatements = true
	return mc.FormatDSN()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
