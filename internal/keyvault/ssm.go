package keyvault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/logger"
)

// SSMClient defines the SSM operations used by ParameterStore.
// This interface makes the code easier to test by allowing mock implementations.
type SSMClient interface {
	PutParameter(
		ctx context.Context,
		params *ssm.PutParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
	AddTagsToResource(
		ctx context.Context,
		params *ssm.AddTagsToResourceInput,
		optFns ...func(*ssm.Options),
	) (*ssm.AddTagsToResourceOutput, error)
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// ParameterStore keeps keys in AWS Systems Manager Parameter Store as SecureString parameters.
type ParameterStore struct {
	client   SSMClient
	prefix   string // e.g., "/ppp/keys"
	kmsKeyID string // optional; the account default key is used when empty
	logger   *slog.Logger
}

// NewParameterStore creates a Parameter Store backed key store.
// prefix should include a leading slash, e.g., "/ppp/keys"
func NewParameterStore(client SSMClient, prefix, kmsKeyID string, log *slog.Logger) *ParameterStore {
	return &ParameterStore{
		client:   client,
		prefix:   strings.TrimRight(prefix, "/"),
		kmsKeyID: kmsKeyID,
		logger:   log,
	}
}

func (p *ParameterStore) parameterName(name string) string {
	return fmt.Sprintf("%s/%s", p.prefix, name)
}

// SetKey stores value as a SecureString parameter, overwriting any previous version.
func (p *ParameterStore) SetKey(ctx context.Context, name, value string) error {
	reqLogger := logger.DeriveRequestLogger(ctx, p.logger)
	parameterName := p.parameterName(name)

	input := &ssm.PutParameterInput{
		Name:      aws.String(parameterName),
		Value:     aws.String(value),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	}
	if p.kmsKeyID != "" {
		input.KeyId = aws.String(p.kmsKeyID)
	}

	reqLogger.Debug("calling external service", "context", map[string]any{
		"operation": "SSM.PutParameter",
		"name":      parameterName,
	})

	if _, err := p.client.PutParameter(ctx, input); err != nil {
		reqLogger.Error("failed to store key", "error", err, "name", name)
		return fmt.Errorf("failed to store key %s: %w", name, err)
	}

	_, err := p.client.AddTagsToResource(ctx, &ssm.AddTagsToResourceInput{
		ResourceType: types.ResourceTypeForTaggingParameter,
		ResourceId:   aws.String(parameterName),
		Tags:         parameterTags(),
	})
	if err != nil {
		reqLogger.Error("failed to tag key parameter", "error", err, "name", name)
		// no need to return an error here, as the key is still stored
	}

	reqLogger.Debug("key stored", "name", name)
	return nil
}

// GetKey retrieves and decrypts a parameter.
func (p *ParameterStore) GetKey(ctx context.Context, name string) (string, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, p.logger)

	result, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(p.parameterName(name)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if isParameterNotFound(err) {
			reqLogger.Debug("key not found", "name", name)
			return "", ErrKeyNotSet(name)
		}
		reqLogger.Error("failed to retrieve key", "error", err, "name", name)
		return "", fmt.Errorf("failed to retrieve key %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		reqLogger.Warn("unexpected nil response from parameter store", "name", name)
		return "", fmt.Errorf("unexpected response from parameter store")
	}

	return *result.Parameter.Value, nil
}

func parameterTags() []types.Tag {
	return []types.Tag{
		{
			Key:   aws.String("Application"),
			Value: aws.String(constants.ProjectName),
		},
		{
			Key:   aws.String("ManagedBy"),
			Value: aws.String(constants.CLIName),
		},
	}
}

func isParameterNotFound(err error) bool {
	var notFound *types.ParameterNotFound
	return errors.As(err, &notFound)
}

// SSMClientAdapter wraps the AWS SDK SSM client to implement SSMClient.
type SSMClientAdapter struct {
	client *ssm.Client
}

// NewSSMClientAdapter creates a new adapter wrapping the AWS SDK SSM client.
func NewSSMClientAdapter(client *ssm.Client) *SSMClientAdapter {
	return &SSMClientAdapter{client: client}
}

// PutParameter wraps the AWS SDK PutParameter operation.
func (a *SSMClientAdapter) PutParameter(
	ctx context.Context,
	params *ssm.PutParameterInput,
	optFns ...func(*ssm.Options),
) (*ssm.PutParameterOutput, error) {
	result, err := a.client.PutParameter(ctx, params, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to put parameter: %w", err)
	}
	return result, nil
}

// AddTagsToResource wraps the AWS SDK AddTagsToResource operation.
func (a *SSMClientAdapter) AddTagsToResource(
	ctx context.Context,
	params *ssm.AddTagsToResourceInput,
	optFns ...func(*ssm.Options),
) (*ssm.AddTagsToResourceOutput, error) {
	result, err := a.client.AddTagsToResource(ctx, params, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to add tags to resource: %w", err)
	}
	return result, nil
}

// GetParameter wraps the AWS SDK GetParameter operation.
func (a *SSMClientAdapter) GetParameter(
	ctx context.Context,
	params *ssm.GetParameterInput,
	optFns ...func(*ssm.Options),
) (*ssm.GetParameterOutput, error) {
	result, err := a.client.GetParameter(ctx, params, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter: %w", err)
	}
	return result, nil
}
