// Package config manages configuration for the pppctl CLI and the relay server.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ppp/pppctl/internal/constants"
)

// Config represents the unified configuration structure.
// It supports loading from YAML files and environment variables.
type Config struct {
	// Cloud bootstrap
	RelayURL    string `mapstructure:"relay_url" yaml:"relay_url" validate:"omitempty,url"`
	AdminAPIURL string `mapstructure:"admin_api_url" yaml:"admin_api_url" validate:"required,url"`
	DataAPIHost string `mapstructure:"data_api_host" yaml:"data_api_host" validate:"omitempty,url"`
	AppName     string `mapstructure:"app_name" yaml:"app_name" validate:"required"`
	// FunctionSourceURL, when set, is the base URL static function sources are fetched from.
	// Embedded sources are used otherwise.
	FunctionSourceURL string `mapstructure:"function_source_url" yaml:"function_source_url" validate:"omitempty,url"`

	// Credential store
	KeyVaultBackend constants.KeyVaultBackend `mapstructure:"keyvault_backend" yaml:"keyvault_backend" validate:"oneof=memory file ssm redis"`
	KeyVaultPrefix  string                    `mapstructure:"keyvault_prefix" yaml:"keyvault_prefix"`
	KeyVaultFile    string                    `mapstructure:"keyvault_file" yaml:"keyvault_file"`
	KMSKeyID        string                    `mapstructure:"kms_key_id" yaml:"kms_key_id"`
	RedisAddr       string                    `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=KeyVaultBackend redis"`
	RedisPassword   string                    `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB         int                       `mapstructure:"redis_db" yaml:"redis_db" validate:"gte=0"`

	// Services
	AWSRegion       string `mapstructure:"aws_region" yaml:"aws_region"`
	ServicesBackend string `mapstructure:"services_backend" yaml:"services_backend" validate:"oneof=dynamodb memory"`
	ServicesTable   string `mapstructure:"services_table" yaml:"services_table" validate:"required"`
	// DatabaseURL is the connection string of the database services are deployed into.
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	// TelegramAPIURL and HaltsFeedURL are the endpoints deployed halts services call.
	TelegramAPIURL string `mapstructure:"telegram_api_url" yaml:"telegram_api_url" validate:"omitempty,url"`
	HaltsFeedURL   string `mapstructure:"halts_feed_url" yaml:"halts_feed_url" validate:"omitempty,url"`

	// Runtime
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RelayListen    string        `mapstructure:"relay_listen" yaml:"relay_listen"`
}

var validate = validator.New()

// Load loads the configuration from ~/.ppp/config.yaml and PPP_* environment variables.
// A missing config file is not an error. Environment variables take precedence.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from the given file path and the environment.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isConfigMissing(err) {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.RelayURL = NormalizeRelayURL(cfg.RelayURL)
	if cfg.KeyVaultFile == "" {
		cfg.KeyVaultFile = filepath.Join(filepath.Dir(path), constants.KeyVaultFileName)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and exits on error.
// Suitable for application startup where configuration errors should be fatal.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Save saves the persistent part of the configuration to the user's home directory.
// Overwrites the existing config file if it exists.
func Save(config *Config) error {
	configFilePath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(config, configFilePath)
}

// SaveTo writes the persistent part of the configuration to path.
func SaveTo(config *Config, configFilePath string) error {
	if err := os.MkdirAll(filepath.Dir(configFilePath), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("relay_url", config.RelayURL)
	v.Set("admin_api_url", config.AdminAPIURL)
	v.Set("app_name", config.AppName)
	v.Set("keyvault_backend", string(config.KeyVaultBackend))
	v.Set("keyvault_prefix", config.KeyVaultPrefix)
	if config.KeyVaultFile != "" {
		v.Set("keyvault_file", config.KeyVaultFile)
	}
	if config.ServicesBackend != "" {
		v.Set("services_backend", config.ServicesBackend)
	}
	v.Set("services_table", config.ServicesTable)
	if config.RedisAddr != "" {
		v.Set("redis_addr", config.RedisAddr)
		v.Set("redis_db", config.RedisDB)
	}
	if config.AWSRegion != "" {
		v.Set("aws_region", config.AWSRegion)
	}
	if config.DatabaseURL != "" {
		v.Set("database_url", config.DatabaseURL)
	}
	if config.TelegramAPIURL != "" && config.TelegramAPIURL != constants.TelegramAPIURL {
		v.Set("telegram_api_url", config.TelegramAPIURL)
	}
	if config.HaltsFeedURL != "" && config.HaltsFeedURL != constants.HaltsFeedURL {
		v.Set("halts_feed_url", config.HaltsFeedURL)
	}

	if err := v.WriteConfigAs(configFilePath); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	if err := os.Chmod(configFilePath, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("error getting current user: %w", err)
	}

	return constants.ConfigFilePath(currentUser.HomeDir), nil
}

// GetLogLevel returns the slog.Level from the string configuration.
// Defaults to INFO if the level string is invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NormalizeRelayURL prefixes https:// when no scheme is given and strips trailing slashes.
func NormalizeRelayURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// Helper functions

func setDefaults(v *viper.Viper) {
	v.SetDefault("admin_api_url", constants.DefaultAdminAPIURL)
	v.SetDefault("data_api_host", constants.DefaultDataAPIHost)
	v.SetDefault("app_name", constants.DefaultAppName)
	v.SetDefault("keyvault_backend", string(constants.KeyVaultFile))
	v.SetDefault("keyvault_prefix", constants.DefaultKeyVaultPrefix)
	v.SetDefault("services_backend", constants.ServicesBackendDynamoDB)
	v.SetDefault("services_table", constants.DefaultServicesTable)
	v.SetDefault("telegram_api_url", constants.TelegramAPIURL)
	v.SetDefault("halts_feed_url", constants.HaltsFeedURL)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("request_timeout", constants.DefaultRequestTimeout)
	v.SetDefault("relay_listen", constants.DefaultRelayListen)
}

func isConfigMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func bindEnvVars(v *viper.Viper) {
	envVars := []string{
		"ADMIN_API_URL",
		"APP_NAME",
		"AWS_REGION",
		"DATA_API_HOST",
		"DATABASE_URL",
		"FUNCTION_SOURCE_URL",
		"HALTS_FEED_URL",
		"KEYVAULT_BACKEND",
		"KEYVAULT_FILE",
		"KEYVAULT_PREFIX",
		"KMS_KEY_ID",
		"LOG_LEVEL",
		"REDIS_ADDR",
		"REDIS_DB",
		"REDIS_PASSWORD",
		"RELAY_LISTEN",
		"RELAY_URL",
		"REQUEST_TIMEOUT",
		"SERVICES_BACKEND",
		"SERVICES_TABLE",
		"TELEGRAM_API_URL",
	}

	for _, envVar := range envVars {
		// Convert to lowercase to match mapstructure tags (keep underscores)
		_ = v.BindEnv(strings.ToLower(envVar), constants.EnvPrefix+"_"+envVar)
	}
}
