package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// DefaultAWSRegion is the region used when none is configured.
const DefaultAWSRegion = "us-east-2"

// SecretsManagerAPI is the subset of the Secrets Manager client used by AWSSource.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource reads secrets from AWS Secrets Manager.
type AWSSource struct {
	client SecretsManagerAPI
	region string
}

// Compile-time check to ensure AWSSource implements SecretSource
var _ driven.SecretSource = (*AWSSource)(nil)

// NewAWSSource creates an AWSSource using the default AWS credential chain
// (environment, shared config, instance role) for region.
func NewAWSSource(ctx context.Context, region string) (*AWSSource, error) {
	if region == "" {
		region = DefaultAWSRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewAWSSourceWithClient(secretsmanager.NewFromConfig(cfg), region), nil
}

// NewAWSSourceWithClient creates an AWSSource around an existing client.
func NewAWSSourceWithClient(client SecretsManagerAPI, region string) *AWSSource {
	return &AWSSource{client: client, region: region}
}

// Name identifies the backend.
func (s *AWSSource) Name() string {
	return "aws-secretsmanager(" + s.region + ")"
}

// GetSecret returns the secret string, or the binary payload when the secret
// was stored as binary.
func (s *AWSSource) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", model.ErrSecretNotFound, name)
		}
		return "", err
	}

	if out.SecretString != nil {
		return aws.ToString(out.SecretString), nil
	}
	return string(out.SecretBinary), nil
}
