package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppp/pppctl/internal/constants"
)

func TestConfig_GetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected slog.Level
	}{
		{name: "DEBUG level", logLevel: "DEBUG", expected: slog.LevelDebug},
		{name: "INFO level", logLevel: "INFO", expected: slog.LevelInfo},
		{name: "WARN level", logLevel: "WARN", expected: slog.LevelWarn},
		{name: "ERROR level", logLevel: "ERROR", expected: slog.LevelError},
		{name: "invalid level defaults to INFO", logLevel: "INVALID", expected: slog.LevelInfo},
		{name: "empty string defaults to INFO", logLevel: "", expected: slog.LevelInfo},
		{name: "lowercase level", logLevel: "debug", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetLogLevel())
		})
	}
}

func validConfig() *Config {
	return &Config{
		AdminAPIURL:     constants.DefaultAdminAPIURL,
		AppName:         constants.DefaultAppName,
		KeyVaultBackend: constants.KeyVaultMemory,
		ServicesBackend: constants.ServicesBackendMemory,
		ServicesTable:   constants.DefaultServicesTable,
	}
}

func TestValidationRules(t *testing.T) {
	t.Run("URL validation for RelayURL", func(t *testing.T) {
		tests := []struct {
			name    string
			url     string
			wantErr bool
		}{
			{name: "valid https URL", url: "https://relay.example.com", wantErr: false},
			{name: "valid http URL", url: "http://localhost:9999", wantErr: false},
			{name: "empty URL is valid (omitempty)", url: "", wantErr: false},
			{name: "invalid URL", url: "not-a-url", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := validConfig()
				cfg.RelayURL = tt.url

				err := validate.Struct(cfg)

				if tt.wantErr {
					assert.Error(t, err, "Expected validation error for URL: %s", tt.url)
				} else {
					assert.NoError(t, err, "Expected no validation error for URL: %s", tt.url)
				}
			})
		}
	})

	t.Run("key vault backend must be known", func(t *testing.T) {
		cfg := validConfig()
		cfg.KeyVaultBackend = "vault"
		assert.Error(t, validate.Struct(cfg))

		cfg.KeyVaultBackend = constants.KeyVaultSSM
		assert.NoError(t, validate.Struct(cfg))
	})

	t.Run("redis backend needs an address", func(t *testing.T) {
		cfg := validConfig()
		cfg.KeyVaultBackend = constants.KeyVaultRedis
		assert.Error(t, validate.Struct(cfg))

		cfg.RedisAddr = "localhost:6379"
		assert.NoError(t, validate.Struct(cfg))
	})

	t.Run("services backend must be known", func(t *testing.T) {
		cfg := validConfig()
		cfg.ServicesBackend = "mongodb"
		assert.Error(t, validate.Struct(cfg))

		cfg.ServicesBackend = constants.ServicesBackendDynamoDB
		assert.NoError(t, validate.Struct(cfg))
	})

	t.Run("app name is required", func(t *testing.T) {
		cfg := validConfig()
		cfg.AppName = ""
		assert.Error(t, validate.Struct(cfg))
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("returns a non-empty path", func(t *testing.T) {
		path, err := GetConfigPath()
		require.NoError(t, err)
		assert.NotEmpty(t, path)
		assert.Contains(t, path, ".ppp")
		assert.Contains(t, path, "config.yaml")
	})
}

func TestNormalizeRelayURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "adds https scheme", input: "relay.example.com", expected: "https://relay.example.com"},
		{name: "keeps http scheme", input: "http://localhost:9999", expected: "http://localhost:9999"},
		{name: "strips trailing slash", input: "https://relay.example.com/", expected: "https://relay.example.com"},
		{name: "trims whitespace", input: "  relay.example.com  ", expected: "https://relay.example.com"},
		{name: "empty stays empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRelayURL(tt.input))
		})
	}
}

func TestLoadFromWithoutConfigFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultAdminAPIURL, cfg.AdminAPIURL)
	assert.Equal(t, constants.DefaultAppName, cfg.AppName)
	assert.Equal(t, constants.KeyVaultFile, cfg.KeyVaultBackend)
	assert.Equal(t, constants.KeyVaultFileName, filepath.Base(cfg.KeyVaultFile))
	assert.Equal(t, constants.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, constants.ServicesBackendDynamoDB, cfg.ServicesBackend)
	assert.Equal(t, constants.DefaultRelayListen, cfg.RelayListen)
	assert.Equal(t, constants.TelegramAPIURL, cfg.TelegramAPIURL)
	assert.Equal(t, constants.HaltsFeedURL, cfg.HaltsFeedURL)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("PPP_LOG_LEVEL", "DEBUG")
	t.Setenv("PPP_RELAY_URL", "relay.example.com/")
	t.Setenv("PPP_REQUEST_TIMEOUT", "5s")
	t.Setenv("PPP_TELEGRAM_API_URL", "https://bots.example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "https://relay.example.com", cfg.RelayURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "https://bots.example.com", cfg.TelegramAPIURL)
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	t.Setenv("PPP_KEYVAULT_BACKEND", "vault")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestSaveToAndLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), constants.ConfigDirName, constants.ConfigFileName)

	cfg := validConfig()
	cfg.RelayURL = "https://relay.example.com"
	cfg.KeyVaultBackend = constants.KeyVaultSSM
	cfg.AWSRegion = "eu-west-1"
	cfg.DatabaseURL = "postgres://ppp@db.example.com/ppp"
	cfg.HaltsFeedURL = "https://feed.example.com/halts"

	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(constants.ConfigFilePermissions), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com", loaded.RelayURL)
	assert.Equal(t, constants.KeyVaultSSM, loaded.KeyVaultBackend)
	assert.Equal(t, "eu-west-1", loaded.AWSRegion)
	assert.Equal(t, "postgres://ppp@db.example.com/ppp", loaded.DatabaseURL)
	assert.Equal(t, "https://feed.example.com/halts", loaded.HaltsFeedURL)
	assert.Equal(t, constants.TelegramAPIURL, loaded.TelegramAPIURL)
}

func TestLoadFromMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relay_url: [unterminated"), 0o600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config file")
}
