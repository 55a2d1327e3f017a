package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the local environment",
	Long: fmt.Sprintf(`Configure the relay, key vault, services backend and database of this installation.
This creates or updates the configuration file at ~/%s/%s; empty answers keep the current value.`,
		constants.ConfigDirName, constants.ConfigFileName),
	Run: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, _ []string) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		exitOnError(err)
		return
	}
	service := NewConfigureService(NewOutputWrapper(), NewConfigSaver(configPath))
	exitOnError(service.Configure(cmd.Context(), cfg))
}

// ConfigSaver defines an interface for saving configuration
type ConfigSaver interface {
	Save(*config.Config) (string, error)
}

// ConfigSaverFunc adapts a function to the ConfigSaver interface
type ConfigSaverFunc func(*config.Config) (string, error)

// Save executes the underlying function to persist configuration
func (f ConfigSaverFunc) Save(cfg *config.Config) (string, error) {
	return f(cfg)
}

// NewConfigSaver creates a ConfigSaver writing to path, or to the default config file when path is empty.
// It returns where the configuration was written.
func NewConfigSaver(path string) ConfigSaver {
	return ConfigSaverFunc(func(cfg *config.Config) (string, error) {
		target := path
		if target == "" {
			var err error
			if target, err = config.GetConfigPath(); err != nil {
				return "", err
			}
		}
		return target, config.SaveTo(cfg, target)
	})
}

// ConfigureService handles configuration logic
type ConfigureService struct {
	output      OutputInterface
	configSaver ConfigSaver
}

// NewConfigureService creates a new ConfigureService with the provided dependencies
func NewConfigureService(outputter OutputInterface, configSaver ConfigSaver) *ConfigureService {
	return &ConfigureService{
		output:      outputter,
		configSaver: configSaver,
	}
}

// Configure runs the interactive configuration flow starting from current.
func (s *ConfigureService) Configure(_ context.Context, current *config.Config) error {
	cfg := *current

	cfg.RelayURL = config.NormalizeRelayURL(s.ask("Relay URL", cfg.RelayURL))

	keyVault := s.ask("Key vault backend (memory, file, ssm, redis)", string(cfg.KeyVaultBackend))
	if !slices.Contains([]string{
		string(constants.KeyVaultMemory), string(constants.KeyVaultFile),
		string(constants.KeyVaultSSM), string(constants.KeyVaultRedis),
	}, keyVault) {
		return fmt.Errorf("unknown key vault backend %q", keyVault)
	}
	cfg.KeyVaultBackend = constants.KeyVaultBackend(keyVault)
	if cfg.KeyVaultBackend == constants.KeyVaultRedis {
		cfg.RedisAddr = s.ask("Redis address", cfg.RedisAddr)
		if cfg.RedisAddr == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	cfg.ServicesBackend = s.ask("Services backend (dynamodb, memory)", cfg.ServicesBackend)
	if cfg.ServicesBackend != constants.ServicesBackendDynamoDB && cfg.ServicesBackend != constants.ServicesBackendMemory {
		return fmt.Errorf("unknown services backend %q", cfg.ServicesBackend)
	}
	if cfg.KeyVaultBackend == constants.KeyVaultSSM || cfg.ServicesBackend == constants.ServicesBackendDynamoDB {
		cfg.AWSRegion = s.ask("AWS region", cfg.AWSRegion)
	}
	cfg.DatabaseURL = s.askSecret("Database URL", cfg.DatabaseURL)

	path, err := s.configSaver.Save(&cfg)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.output.Successf("Configuration saved successfully")
	s.output.KeyValue("Configuration path", path)
	return nil
}

// ask prompts for a value; an empty answer keeps current.
func (s *ConfigureService) ask(prompt, current string) string {
	label := prompt
	if current != "" {
		label = fmt.Sprintf("%s [%s]", prompt, current)
	}
	if answer := s.output.Prompt(label); answer != "" {
		return answer
	}
	return current
}

// askSecret is ask for values that must not be echoed or shown.
func (s *ConfigureService) askSecret(prompt, current string) string {
	label := prompt
	if current != "" {
		label = prompt + " [keep current]"
	}
	if answer := s.output.PromptSecret(label); answer != "" {
		return answer
	}
	return current
}
