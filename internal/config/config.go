// Package config handles configuration loading, validation, and
// persistence for the zanrcon client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zanrcon-project/zanrcon/internal/protocol"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

const (
	DefaultConfigDir   = "config"
	DefaultConfigFile  = "config.json"
	DefaultBridgePort  = 8666
	DefaultHistoryPath = "data/history.db"
)

// Config is the root configuration structure for zanrcon.
type Config struct {
	mu   sync.RWMutex
	path string

	Server  ServerConfig   `json:"server"`
	Display DisplayConfig  `json:"display"`
	History HistoryConfig  `json:"history"`
	Bridge  BridgeConfig   `json:"bridge"`
	MQTT    MQTTConfig     `json:"mqtt"`
	Logging util.LogConfig `json:"logging"`
}

// ServerConfig identifies the game server this client talks to. The
// console password is deliberately absent: it arrives via flag,
// environment, or prompt and is never written to disk.
type ServerConfig struct {
	Address           string `json:"address"`
	Port              int    `json:"port"`
	ReceiveTimeoutSec int    `json:"receive_timeout_sec"`
}

// DisplayConfig holds terminal presentation settings.
type DisplayConfig struct {
	ShowColors bool   `json:"show_colors"`
	Prompt     string `json:"prompt"`
}

// HistoryConfig holds command history persistence settings.
type HistoryConfig struct {
	Enabled      bool   `json:"enabled"`
	Path         string `json:"path"`
	MaxEntries   int    `json:"max_entries"`
	DisplayLimit int    `json:"display_limit"`
}

// BridgeConfig holds the HTTP console bridge settings.
type BridgeConfig struct {
	Enabled        bool     `json:"enabled"`
	BindAddress    string   `json:"bind_address"`
	Port           int      `json:"port"`
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	LineBuffer     int      `json:"line_buffer"`
}

// MQTTConfig holds the console mirror's broker settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              protocol.DefaultPort,
			ReceiveTimeoutSec: 4,
		},
		Display: DisplayConfig{
			ShowColors: false,
			Prompt:     ">> ",
		},
		History: HistoryConfig{
			Enabled:      true,
			Path:         DefaultHistoryPath,
			MaxEntries:   1000,
			DisplayLimit: 10,
		},
		Bridge: BridgeConfig{
			Enabled:      false,
			BindAddress:  "127.0.0.1",
			Port:         DefaultBridgePort,
			RateLimitRPS: 100,
			LineBuffer:   500,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        8883,
			UseTLS:      true,
			TopicPrefix: "zanrcon",
		},
		Logging: util.DefaultLogConfig(),
	}
}

// Load reads configuration from a JSON file in configDir, creating a
// default file when none exists. Fields absent from the file keep
// their defaults.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so the file always carries the complete set of options,
	// including ones added after it was first written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetServer returns a copy of the server configuration.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// SetServer updates the server configuration.
func (c *Config) SetServer(server ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server = server
}

// GetDisplay returns a copy of the display configuration.
func (c *Config) GetDisplay() DisplayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Display
}

// GetHistory returns a copy of the history configuration.
func (c *Config) GetHistory() HistoryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.History
}

// GetBridge returns a copy of the bridge configuration.
func (c *Config) GetBridge() BridgeConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Bridge
}

// GetMQTT returns a copy of the MQTT configuration.
func (c *Config) GetMQTT() MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MQTT
}

// GetLogging returns a copy of the logging configuration.
func (c *Config) GetLogging() util.LogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
