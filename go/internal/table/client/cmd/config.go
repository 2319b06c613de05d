package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/tablesync/go/internal/table/client"
	"github.com/mcdev12/tablesync/go/internal/table/relay"
	"gopkg.in/yaml.v3"
)

// Config is the binary's configuration. A YAML file overlays the defaults,
// and environment variables overlay the file.
type Config struct {
	Client client.Config `yaml:"client"`
	Relay  relay.Config  `yaml:"relay"`

	Token      string `yaml:"-"`
	Username   string `yaml:"-"`
	RoomID     string `yaml:"room_id"`
	StatusPort string `yaml:"status_port"`
	RelayOn    bool   `yaml:"relay_enabled"`
}

func defaultConfig() Config {
	return Config{
		Client:     client.DefaultConfig(),
		Relay:      relay.DefaultConfig(),
		StatusPort: "8090",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig overlays the YAML file at path onto base
func loadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	config := base
	if err := yaml.Unmarshal(data, &config); err != nil {
		return base, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// applyEnv overlays environment variables onto config
func applyEnv(config Config) Config {
	config.Client.Connection.BaseURL = getEnv("TABLE_URL", config.Client.Connection.BaseURL)
	config.Client.Connection.MaxReconnectAttempts = getEnvAsInt("TABLE_MAX_RECONNECTS", config.Client.Connection.MaxReconnectAttempts)
	config.Client.Connection.PingInterval = getEnvAsDuration("TABLE_PING_INTERVAL", config.Client.Connection.PingInterval)
	config.Token = getEnv("TABLE_TOKEN", config.Token)
	config.Username = getEnv("TABLE_USER", config.Username)
	config.RoomID = getEnv("ROOM_ID", config.RoomID)
	config.StatusPort = getEnv("STATUS_PORT", config.StatusPort)

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.Relay.URL = natsURL
		config.RelayOn = true
	}
	config.Relay.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", config.Relay.SubjectPrefix)
	return config
}
