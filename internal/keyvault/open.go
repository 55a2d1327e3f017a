package keyvault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
)

// Open builds the store selected by cfg.KeyVaultBackend.
// The returned close function releases backend connections and is never nil.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.KeyVaultBackend {
	case constants.KeyVaultMemory:
		return NewMemory(), noop, nil
	case constants.KeyVaultFile, "":
		return NewFile(cfg.KeyVaultFile), noop, nil
	case constants.KeyVaultSSM:
		awsCfg, err := cfg.AWSConfig(ctx)
		if err != nil {
			return nil, noop, err
		}
		client := NewSSMClientAdapter(ssm.NewFromConfig(awsCfg))
		return NewParameterStore(client, cfg.KeyVaultPrefix, cfg.KMSKeyID, log), noop, nil
	case constants.KeyVaultRedis:
		client, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return NewRedis(client, cfg.KeyVaultPrefix, log), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown key vault backend %q", cfg.KeyVaultBackend)
	}
}
