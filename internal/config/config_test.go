package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zanrcon-project/zanrcon/internal/protocol"
)

func TestDefaultConfigIsValid(t *testing.T) {
	result := Validate(DefaultConfig())
	require.True(t, result.IsValid(), "errors: %v", result.Errors)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, protocol.DefaultPort, cfg.Server.Port)
	require.FileExists(t, filepath.Join(dir, DefaultConfigFile))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := `{
		"server": {"address": "doom.example.net", "port": 27015},
		"display": {"show_colors": true}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "doom.example.net", cfg.Server.Address)
	require.Equal(t, 27015, cfg.Server.Port)
	require.True(t, cfg.Display.ShowColors)

	// Untouched sections keep their defaults.
	require.Equal(t, 1000, cfg.History.MaxEntries)
	require.Equal(t, DefaultBridgePort, cfg.Bridge.Port)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{nope"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	server := cfg.GetServer()
	server.Address = "zandronum.example.org"
	server.ReceiveTimeoutSec = 10
	cfg.SetServer(server)
	require.NoError(t, cfg.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "zandronum.example.org", reloaded.Server.Address)
	require.Equal(t, 10, reloaded.Server.ReceiveTimeoutSec)
}

func TestValidateRejectsBadServerSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.ReceiveTimeoutSec = 0

	result := Validate(cfg)
	require.False(t, result.IsValid())
	require.Len(t, result.Errors, 2)
}

func TestValidateMQTTRequiresBroker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MQTT.Enabled = true
	cfg.MQTT.BrokerURL = ""

	result := Validate(cfg)
	require.False(t, result.IsValid())
}

func TestValidateBridgeWildcardOriginWarns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bridge.Enabled = true
	cfg.Bridge.AllowedOrigins = []string{"*"}

	result := Validate(cfg)
	require.True(t, result.IsValid())
	require.NotEmpty(t, result.Warnings)
}

func TestValidateHistoryPathRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.Path = "  "

	result := Validate(cfg)
	require.False(t, result.IsValid())
}

func TestPromptPassword(t *testing.T) {
	password, err := PromptPassword(strings.NewReader("hunter2\n"), "Console password")
	require.NoError(t, err)
	require.Equal(t, "hunter2", password)
}

func TestPromptPasswordEOF(t *testing.T) {
	_, err := PromptPassword(strings.NewReader(""), "Console password")
	require.Error(t, err)
}
