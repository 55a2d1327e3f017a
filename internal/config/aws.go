package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
)

// AWSConfig loads the AWS SDK configuration, pinning the configured region when set.
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	cfgOpts := []func(*awsConfig.LoadOptions) error{}
	if c.AWSRegion != "" {
		cfgOpts = append(cfgOpts, awsConfig.WithRegion(c.AWSRegion))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
