package registrar

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

// NewAWS builds a registrar on the default AWS credential chain. An empty region
// leaves the region to the environment.
func NewAWS(ctx context.Context, region string, cfg Config, logger *slog.Logger) (*Registrar, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return New(
		sfn.NewFromConfig(awsCfg),
		eventbridge.NewFromConfig(awsCfg),
		scheduler.NewFromConfig(awsCfg),
		cfg,
		logger,
	), nil
}
