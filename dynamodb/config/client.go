package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

// AWSConfig loads an aws.Config using the static credentials and region
// from s.
func AWSConfig(ctx context.Context, s Settings) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewClient builds a DynamoDB client for the configured endpoint.
func NewClient(ctx context.Context, s Settings) (*dynamodb.Client, error) {
	cfg, err := AWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(s.EndpointURL())
	}), nil
}

// CallerIdentity asks STS who the configured credentials belong to.
func CallerIdentity(ctx context.Context, s Settings) (*sts.GetCallerIdentityOutput, error) {
	cfg, err := AWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}
	return out, nil
}

// NewLogger builds a development zap logger at the configured level.
func NewLogger(s Settings) (*zap.Logger, error) {
	level := zap.InfoLevel
	if s.LogLevel != "" {
		if err := level.Set(s.LogLevel); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
