package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Config struct {
	Region          string `envconfig:"AWS_REGION" default:"eu-north-1"`
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" json:"-"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" json:"-"`
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint     string `envconfig:"DYNAMODB_ENDPOINT"`
	CreateTables bool   `envconfig:"DYNAMODB_CREATE_TABLES" default:"true"`
}

func (c Config) Validate() error {
	if c.AccessKeyID == "" {
		return errors.New("AWS_ACCESS_KEY_ID is not defined")
	}
	if c.SecretAccessKey == "" {
		return errors.New("AWS_SECRET_ACCESS_KEY is not defined")
	}
	if c.Region == "" {
		return errors.New("AWS_REGION is not defined")
	}
	return nil
}

// NewClient builds a DynamoDB client with static credentials.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
