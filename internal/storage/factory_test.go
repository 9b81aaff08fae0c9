package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-s3-backup/internal/config"
)

func TestNewObjectStore(t *testing.T) {
	r := &fakeRunner{}

	t.Run("awscli driver", func(t *testing.T) {
		store, err := NewObjectStore(&config.S3Config{
			Bucket: "backups",
			Driver: config.DriverAWSCLI,
		}, r)
		require.NoError(t, err)
		assert.IsType(t, &AWSCLIStore{}, store)
	})

	t.Run("sdk driver", func(t *testing.T) {
		store, err := NewObjectStore(&config.S3Config{
			Bucket:          "backups",
			Driver:          config.DriverSDK,
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
			Endpoint:        "http://minio:9000",
		}, r)
		require.NoError(t, err)
		assert.IsType(t, &S3Store{}, store)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewObjectStore(&config.S3Config{
			Bucket: "backups",
			Driver: "ftp",
		}, r)
		assert.Error(t, err)
	})
}
