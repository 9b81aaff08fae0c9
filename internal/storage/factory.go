package storage

import (
	"fmt"

	"pg-s3-backup/internal/config"
	"pg-s3-backup/internal/runner"
)

// NewObjectStore builds the configured storage driver for the run's bucket
func NewObjectStore(cfg *config.S3Config, r runner.Runner) (ObjectStore, error) {
	switch cfg.Driver {
	case config.DriverAWSCLI:
		return NewAWSCLIStore(r, cfg.Bucket, cfg.EndpointOption()), nil
	case config.DriverSDK:
		region := cfg.Region
		if region == "" {
			region = config.DefaultRegion
		}
		return NewS3Store(cfg.Bucket, S3Options{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          region,
			Endpoint:        cfg.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
