package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsGetter is the part of the Secrets Manager client Load uses
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// loadSecret fetches a JSON object of configuration keys, for example
// {"github.token": "...", "twitter": {"access_token": "..."}}
func (l *loader) loadSecret(ctx context.Context, secretName, region string) (map[string]interface{}, error) {
	client := l.secrets
	if client == nil {
		var opts []func(*awsconfig.LoadOptions) error
		if region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(cfg)
	}

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve secret %s: %w", secretName, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretName)
	}

	var overlay map[string]interface{}
	if err := json.Unmarshal([]byte(*result.SecretString), &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	return overlay, nil
}
