package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/operation"
	"github.com/ppp/pppctl/internal/provision"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Cloud app management commands",
}

var setupInput provision.SetupInput

var cloudSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure cloud services",
	Long: `Check the service machine, GitHub token and admin API key pair, store them in the key vault,
then create or adopt the cloud app and synchronize its functions.
Missing values are prompted for; secrets are read without echo.`,
	Example: fmt.Sprintf(
		"  - %s cloud setup --service-machine-url https://relay.example.com --mongo-public-key abcdefgh",
		constants.CLIName),
	Run: runCloudSetup,
}

var credentialsStringCmd = &cobra.Command{
	Use:     "credentials-string",
	Short:   "Print the credentials string to share with other installations",
	Example: fmt.Sprintf("  - %s cloud credentials-string", constants.CLIName),
	Run:     runCredentialsString,
}

func init() {
	flags := cloudSetupCmd.Flags()
	flags.StringVar(&setupInput.ServiceMachineURL, "service-machine-url", "", "URL of the relay on the service machine")
	flags.StringVar(&setupInput.GitHubToken, "github-token", "", "GitHub personal access token")
	flags.StringVar(&setupInput.PublicKey, "mongo-public-key", "", "Admin API public key")
	flags.StringVar(&setupInput.PrivateKey, "mongo-private-key", "", "Admin API private key")

	cloudCmd.AddCommand(cloudSetupCmd)
	cloudCmd.AddCommand(credentialsStringCmd)
	rootCmd.AddCommand(cloudCmd)
}

func runCloudSetup(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		return withKeyVault(ctx, cfg, log, func(store keyvault.Store) error {
			setup := provision.NewSetup(
				store,
				provision.RelayConnector{AdminAPIURL: cfg.AdminAPIURL, Timeout: cfg.RequestTimeout, Logger: log},
				provision.NewGitHub(constants.GitHubUserURL, cfg.RequestTimeout, log),
				sourceLoader(cfg, log),
				cfg.AppName,
				log,
			)
			return NewCloudService(setup, nil, NewOutputWrapper()).Setup(ctx, setupInput)
		})
	})
}

func runCredentialsString(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		return withKeyVault(ctx, cfg, log, func(store keyvault.Store) error {
			builder := &storeCredentials{store: store, cfg: cfg, logger: log}
			return NewCloudService(nil, builder, NewOutputWrapper()).CredentialsString(ctx)
		})
	})
}

// setupRunner runs the cloud setup operation.
type setupRunner interface {
	Run(ctx context.Context, in provision.SetupInput, sink operation.Sink) error
}

// credentialsBuilder builds the shareable credentials string.
type credentialsBuilder interface {
	CredentialsString(ctx context.Context) (string, error)
}

// storeCredentials builds the credentials string from the key vault,
// resolving the app location through the stored service machine.
type storeCredentials struct {
	store  keyvault.Store
	cfg    *config.Config
	logger *slog.Logger
}

func (s *storeCredentials) CredentialsString(ctx context.Context) (string, error) {
	relayURL, err := s.store.GetKey(ctx, constants.KeyServiceMachineURL)
	if err != nil {
		return "", err
	}
	return provision.CredentialsString(ctx, s.store, adminClient(s.cfg, relayURL, s.logger))
}

// CloudService handles cloud app operations
type CloudService struct {
	setup       setupRunner
	credentials credentialsBuilder
	output      OutputInterface
}

// NewCloudService creates a new CloudService with the provided dependencies
func NewCloudService(setup setupRunner, credentials credentialsBuilder, outputter OutputInterface) *CloudService {
	return &CloudService{
		setup:       setup,
		credentials: credentials,
		output:      outputter,
	}
}

// Setup prompts for any value not given as a flag and runs the setup operation.
func (s *CloudService) Setup(ctx context.Context, in provision.SetupInput) error {
	in.MasterPassword = s.output.PromptSecret("Master password")
	if in.ServiceMachineURL == "" {
		in.ServiceMachineURL = s.output.Prompt("Service machine URL")
	}
	if in.GitHubToken == "" {
		in.GitHubToken = s.output.PromptSecret("GitHub token")
	}
	if in.PublicKey == "" {
		in.PublicKey = s.output.Prompt("Admin API public key")
	}
	if in.PrivateKey == "" {
		in.PrivateKey = s.output.PromptSecret("Admin API private key")
	}
	s.output.Blank()

	if err := s.setup.Run(ctx, in, s.output.OperationSink("Configuring cloud services")); err != nil {
		return reportedError{err}
	}
	return nil
}

// CredentialsString prints the string other installations import.
func (s *CloudService) CredentialsString(ctx context.Context) error {
	str, err := s.credentials.CredentialsString(ctx)
	if err != nil {
		return fmt.Errorf("failed to build the credentials string: %w", err)
	}
	s.output.Infof("Share this string with the installations that should use your cloud app:")
	s.output.Println(str)
	return nil
}
