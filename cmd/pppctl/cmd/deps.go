package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/database/dynamodb"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/output"
	"github.com/ppp/pppctl/internal/provision"
	"github.com/ppp/pppctl/internal/relay"
	"github.com/ppp/pppctl/internal/service"
)

// reportedError marks an error an operation sink has already shown to the operator.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// exitOnError prints err, unless it was already reported, and exits non-zero.
func exitOnError(err error) {
	if err == nil {
		return
	}
	var reported reportedError
	if errors.As(err, &reported) {
		exit(1)
		return
	}
	output.Fatalf("%v", err)
}

// executeWithConfig runs fn with the loaded configuration and the default logger.
func executeWithConfig(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, log *slog.Logger) error) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Fatalf("failed to load configuration: %v", err)
	}
	exitOnError(fn(cmd.Context(), cfg, slog.Default()))
}

// withKeyVault opens the configured credential store for the duration of fn.
func withKeyVault(
	ctx context.Context, cfg *config.Config, log *slog.Logger, fn func(store keyvault.Store) error,
) (err error) {
	store, closeStore, err := keyvault.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open the key vault: %w", err)
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(store)
}

// sourceLoader returns where static function sources are read from.
func sourceLoader(cfg *config.Config, log *slog.Logger) provision.SourceLoader {
	if cfg.FunctionSourceURL != "" {
		return provision.NewHTTPLoader(cfg.FunctionSourceURL, cfg.RequestTimeout, log)
	}
	return provision.EmbeddedSources()
}

// adminClient reaches the admin API through the relay at relayURL.
func adminClient(cfg *config.Config, relayURL string, log *slog.Logger) *adminapi.Client {
	return adminapi.New(relay.NewClient(relayURL, log, relay.WithTimeout(cfg.RequestTimeout)),
		cfg.AdminAPIURL, log)
}

// openServiceRepository builds the document store selected by cfg.ServicesBackend.
func openServiceRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.Repository, error) {
	switch cfg.ServicesBackend {
	case constants.ServicesBackendMemory:
		return service.NewMemoryRepository(), nil
	case constants.ServicesBackendDynamoDB, "":
		awsCfg, err := cfg.AWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewClientAdapter(awsdynamodb.NewFromConfig(awsCfg))
		return dynamodb.NewServiceRepository(client, cfg.ServicesTable, log), nil
	default:
		return nil, fmt.Errorf("unknown services backend %q", cfg.ServicesBackend)
	}
}
