package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL       MySQLConfig
	Redis       RedisConfig
	Migrate     bool
	HTTPAddr    string
	QueueRunner QueueRunnerConfig
	GitTask     GitTaskConfig
	Webhook     WebhookConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueRunnerConfig holds change-set queue runner configuration
type QueueRunnerConfig struct {
	Enabled              bool
	IntervalSec          int
	MaxRunningPerAccount int
	LockWaitTimeoutSec   int
	LockLeaseSec         int
	MaxRetryCount        int
}

// GitTaskConfig holds remote git worker configuration
type GitTaskConfig struct {
	WorkerURL    string
	WorkerToken  string
	TimeoutSec   int
	MaxPushRetry int
}

// WebhookConfig holds inbound webhook configuration
type WebhookConfig struct {
	MaxBodyBytes int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		QueueRunner: QueueRunnerConfig{
			Enabled:              getEnv("QUEUE_RUNNER_ENABLED", "1") == "1",
			IntervalSec:          getEnvInt("QUEUE_RUNNER_INTERVAL_SEC", 5),
			MaxRunningPerAccount: getEnvInt("QUEUE_MAX_RUNNING_PER_ACCOUNT", 3),
			LockWaitTimeoutSec:   getEnvInt("QUEUE_LOCK_WAIT_TIMEOUT_SEC", 10),
			LockLeaseSec:         getEnvInt("QUEUE_LOCK_LEASE_SEC", 60),
			MaxRetryCount:        getEnvInt("QUEUE_MAX_RETRY_COUNT", 3),
		},
		GitTask: GitTaskConfig{
			WorkerURL:    getEnv("GIT_WORKER_URL", "http://localhost:9090"),
			WorkerToken:  getEnv("GIT_WORKER_TOKEN", ""),
			TimeoutSec:   getEnvInt("GIT_TASK_TIMEOUT_SEC", 600),
			MaxPushRetry: getEnvInt("GIT_TASK_MAX_PUSH_RETRY", 3),
		},
		Webhook: WebhookConfig{
			MaxBodyBytes: int64(getEnvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	// Load INI file
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		QueueRunner: QueueRunnerConfig{
			Enabled:              getValueBool("QUEUE_RUNNER_ENABLED", "queue", "runner_enabled", true),
			IntervalSec:          getValueInt("QUEUE_RUNNER_INTERVAL_SEC", "queue", "interval_sec", 5),
			MaxRunningPerAccount: getValueInt("QUEUE_MAX_RUNNING_PER_ACCOUNT", "queue", "max_running_per_account", 3),
			LockWaitTimeoutSec:   getValueInt("QUEUE_LOCK_WAIT_TIMEOUT_SEC", "queue", "lock_wait_timeout_sec", 10),
			LockLeaseSec:         getValueInt("QUEUE_LOCK_LEASE_SEC", "queue", "lock_lease_sec", 60),
			MaxRetryCount:        getValueInt("QUEUE_MAX_RETRY_COUNT", "queue", "max_retry_count", 3),
		},
		GitTask: GitTaskConfig{
			WorkerURL:    getValue("GIT_WORKER_URL", "git_task", "worker_url", "http://localhost:9090"),
			WorkerToken:  getValue("GIT_WORKER_TOKEN", "git_task", "worker_token", ""),
			TimeoutSec:   getValueInt("GIT_TASK_TIMEOUT_SEC", "git_task", "timeout_sec", 600),
			MaxPushRetry: getValueInt("GIT_TASK_MAX_PUSH_RETRY", "git_task", "max_push_retry", 3),
		},
		Webhook: WebhookConfig{
			MaxBodyBytes: int64(getValueInt("WEBHOOK_MAX_BODY_BYTES", "webhook", "max_body_bytes", 1<<20)),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}

	return cfg, nil
}
