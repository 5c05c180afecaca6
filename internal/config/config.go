package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration shared by the API
	// server and the billing worker.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		Billing    Billing    `yaml:"billing"`
		SMTP       SMTP       `yaml:"smtp"`
		Redis      Redis      `yaml:"redis"`
		// Cost of the password to hash. Must be greater than 3.
		PasswordHashCost int `yaml:"password_hash_cost" env-default:"14"`
	}

	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}

	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"5"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"30"`
	}

	// Config for JWT.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}

	// Config for the daily accrual job. Monetary values are decimal
	// strings parsed by the billing package; money never passes
	// through floats.
	Billing struct {
		// Cron expression for the accrual job.
		Schedule string `yaml:"schedule" env:"BILLING_SCHEDULE" env-default:"0 2 * * *"`
		// Address of the worker's metrics endpoint.
		MetricsAddress string `yaml:"metrics_address" env:"BILLING_METRICS_ADDRESS" env-default:"127.0.0.1:9090"`
		// Free trial window for newly created self-hosted radios, days.
		TrialDays int `yaml:"trial_days" env-default:"5"`
		// A low balance reminder is sent when the balance covers fewer
		// than this many daily charges.
		LowBalanceDays int `yaml:"low_balance_days" env:"LOW_BALANCE_DAYS" env-default:"5"`
		// Number of radio channels included in the base self-hosted price.
		FreeChannels int `yaml:"free_channels" env-default:"5"`
		// Admin mailbox for low balance copies and job summaries.
		AdminEmail string `yaml:"admin_email" env:"ADMIN_EMAIL"`
		// Monthly base price for a self-hosted server, per currency.
		BasePriceUSD string `yaml:"base_price_usd" env-default:"10"`
		BasePriceRUB string `yaml:"base_price_rub" env-default:"549"`
		BasePriceEUR string `yaml:"base_price_eur" env-default:"10"`
		// Monthly surcharge for an unbranded self-hosted server.
		UnbrandedPriceUSD string `yaml:"unbranded_price_usd" env-default:"5"`
		UnbrandedPriceRUB string `yaml:"unbranded_price_rub" env-default:"250"`
		UnbrandedPriceEUR string `yaml:"unbranded_price_eur" env-default:"5"`
		// Monthly price per radio channel above the free allowance.
		ChannelPriceUSD string `yaml:"channel_price_usd" env-default:"1"`
		ChannelPriceRUB string `yaml:"channel_price_rub" env-default:"50"`
		ChannelPriceEUR string `yaml:"channel_price_eur" env-default:"1"`
		// Monthly price per gigabyte of disk usage above quota.
		DiskPriceUSD string `yaml:"disk_price_usd" env-default:"0.5"`
		DiskPriceRUB string `yaml:"disk_price_rub" env-default:"25"`
		DiskPriceEUR string `yaml:"disk_price_eur" env-default:"0.5"`
	}

	// Config for outgoing mail. The primary route serves the Russian
	// brand, the secondary one the international brand.
	SMTP struct {
		Primary   SMTPRoute `yaml:"primary"`
		Secondary SMTPRoute `yaml:"secondary"`
	}

	SMTPRoute struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" env-default:"587"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	}

	// Config for Redis. Used only for the billing run lock.
	Redis struct {
		Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"127.0.0.1:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env-default:"0"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")
	flag.Parse()

	var cfg Config

	// Load from YAML cfg file if present.
	if _, err := os.Stat(*configPath); err == nil {
		bytes, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("failed to open config file: %s", *configPath)
		}
		if err = cleanenv.ParseYAML(bytes, &cfg); err != nil {
			log.Fatalf("failed to parse config file: %s", *configPath)
		}
	}

	// Read environment variables and defaults.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	return &cfg
}
