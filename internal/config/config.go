package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/craftport/opsmon/internal/monitoring/probes"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
	Redis      RedisConfig      `json:"redis"`
	Monitoring MonitoringConfig `json:"monitoring"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type MonitoringConfig struct {
	// TriggerSpec is the cron expression driving scheduled runs.
	TriggerSpec string `json:"triggerSpec"`
	// ResultTTL is how long cached check results stay readable, e.g. "5m".
	ResultTTL string `json:"resultTTL"`
	// ProbeTimeout bounds each probe invocation, e.g. "10s".
	ProbeTimeout string `json:"probeTimeout"`
	// MaxConcurrent bounds probe fan-out per tier run.
	MaxConcurrent int `json:"maxConcurrent"`
	// ChannelsFile is the YAML file describing alert channels.
	ChannelsFile string `json:"channelsFile"`
	// SendTimeout bounds each alert channel delivery, e.g. "15s".
	SendTimeout string           `json:"sendTimeout"`
	Endpoints   probes.Endpoints `json:"endpoints"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "opsmon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Monitoring: MonitoringConfig{
			TriggerSpec:   getEnv("MON_TRIGGER_SPEC", "* * * * *"),
			ResultTTL:     getEnv("MON_RESULT_TTL", "5m"),
			ProbeTimeout:  getEnv("MON_PROBE_TIMEOUT", "10s"),
			MaxConcurrent: getEnvInt("MON_MAX_CONCURRENT", 16),
			ChannelsFile:  getEnv("MON_CHANNELS_FILE", ""),
			SendTimeout:   getEnv("MON_SEND_TIMEOUT", "15s"),
			Endpoints: probes.Endpoints{
				APIGateway:    getEnv("MON_ENDPOINT_API_GATEWAY", ""),
				Storefront:    getEnv("MON_ENDPOINT_STOREFRONT", ""),
				CreatorPortal: getEnv("MON_ENDPOINT_CREATOR_PORTAL", ""),
				Payments:      getEnv("MON_ENDPOINT_PAYMENTS", ""),
				TaxService:    getEnv("MON_ENDPOINT_TAX_SERVICE", ""),
				EmailDelivery: getEnv("MON_ENDPOINT_EMAIL_DELIVERY", ""),
				StatusPage:    getEnv("MON_ENDPOINT_STATUS_PAGE", ""),
				CDN:           getEnv("MON_ENDPOINT_CDN", ""),
			},
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Monitoring.TriggerSpec == "" {
		cfg.Monitoring.TriggerSpec = "* * * * *"
	}
	if cfg.Monitoring.ResultTTL == "" {
		cfg.Monitoring.ResultTTL = "5m"
	}
	if cfg.Monitoring.ProbeTimeout == "" {
		cfg.Monitoring.ProbeTimeout = "10s"
	}
	if cfg.Monitoring.MaxConcurrent == 0 {
		cfg.Monitoring.MaxConcurrent = 16
	}
	if cfg.Monitoring.SendTimeout == "" {
		cfg.Monitoring.SendTimeout = "15s"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
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
