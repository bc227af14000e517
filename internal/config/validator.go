package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateHistory(&cfg.History, result)
	validateBridge(&cfg.Bridge, result)
	validateMQTT(&cfg.MQTT, result)

	return result
}

func validateServer(server *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(server.Address) == "" {
		result.AddWarning("server.address",
			"no default server address configured; pass one on the command line")
	}

	validatePort(server.Port, "server.port", result)

	if server.ReceiveTimeoutSec < 1 {
		result.AddError("server.receive_timeout_sec",
			"receive timeout must be at least 1 second")
	} else if server.ReceiveTimeoutSec > 30 {
		result.AddWarning("server.receive_timeout_sec",
			"long receive timeouts delay keep-alives and the server may drop the session")
	}
}

func validateHistory(history *HistoryConfig, result *ValidationResult) {
	if !history.Enabled {
		return
	}

	if strings.TrimSpace(history.Path) == "" {
		result.AddError("history.path", "history path is required when history is enabled")
	}
	if history.MaxEntries < 0 {
		result.AddError("history.max_entries", "retention cannot be negative")
	}
	if history.MaxEntries > 100000 {
		result.AddWarning("history.max_entries",
			fmt.Sprintf("very large retention (%d) slows history queries", history.MaxEntries))
	}
}

func validateBridge(bridge *BridgeConfig, result *ValidationResult) {
	if !bridge.Enabled {
		return
	}

	validatePort(bridge.Port, "bridge.port", result)

	if bridge.BindAddress != "localhost" && net.ParseIP(bridge.BindAddress) == nil {
		result.AddError("bridge.bind_address",
			fmt.Sprintf("invalid bind address: %s", bridge.BindAddress))
	}

	if bridge.TLSEnabled {
		if strings.TrimSpace(bridge.TLSCertFile) == "" || strings.TrimSpace(bridge.TLSKeyFile) == "" {
			result.AddWarning("bridge.tls_cert_file",
				"TLS enabled without certificate files; a self-signed pair will be generated")
		}
	}

	if bridge.RateLimitRPS < 1 {
		result.AddWarning("bridge.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the bridge to abuse")
	}

	for _, origin := range bridge.AllowedOrigins {
		if origin == "*" {
			result.AddWarning("bridge.allowed_origins",
				"wildcard origin lets any site reach the bridge")
		}
	}

	if bridge.LineBuffer < 1 {
		result.AddError("bridge.line_buffer", "line buffer must hold at least 1 line")
	}
}

func validateMQTT(mqtt *MQTTConfig, result *ValidationResult) {
	if !mqtt.Enabled {
		return
	}

	if strings.TrimSpace(mqtt.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if mqtt.Port < 1 || mqtt.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if strings.TrimSpace(mqtt.TopicPrefix) == "" {
		result.AddError("mqtt.topic_prefix", "topic prefix is required when enabled")
	}
	if mqtt.UseTLS && strings.TrimSpace(mqtt.CAFile) == "" {
		result.AddWarning("mqtt.ca_file",
			"no CA file set; the broker certificate is verified against system roots")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
