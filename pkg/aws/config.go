package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWSConfig loads the default AWS configuration from the environment.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}
