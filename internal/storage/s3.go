package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// listingTimeLayout is how drivers render last-modified timestamps, matching
// the "aws s3 ls" output the retention engine parses.
const listingTimeLayout = "2006-01-02 15:04:05"

// S3Store reaches S3 in-process through the AWS SDK. Functionally equivalent
// to the CLI driver; useful where the aws binary is not installed.
type S3Store struct {
	client *s3.S3
	bucket string
}

// S3Options configures the SDK driver
type S3Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Endpoint overrides the AWS endpoint for S3-compatible storage; when
	// set, path-style addressing is forced since most compatible stores do
	// not support virtual-hosted buckets.
	Endpoint string
}

// NewS3Store creates an SDK-backed store for one bucket
func NewS3Store(bucket string, opts S3Options) (*S3Store, error) {
	awsConfig := &aws.Config{
		Region: aws.String(opts.Region),
		Credentials: credentials.NewStaticCredentials(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // token
		),
	}
	if opts.Endpoint != "" {
		awsConfig.Endpoint = aws.String(opts.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: bucket,
	}, nil
}

// List returns the objects under prefix with keys relative to it
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	listPrefix := strings.TrimSuffix(prefix, "/") + "/"

	var objects []ObjectInfo
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	}

	err := s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				key := strings.TrimPrefix(aws.StringValue(obj.Key), listPrefix)
				if key == "" || strings.Contains(key, "/") {
					// The prefix marker itself, or an object in a
					// deeper pseudo-directory.
					continue
				}
				objects = append(objects, ObjectInfo{
					Key:          key,
					LastModified: aws.TimeValue(obj.LastModified).UTC().Format(listingTimeLayout),
					Size:         aws.Int64Value(obj.Size),
				})
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects in s3://%s/%s: %w", s.bucket, listPrefix, err)
	}

	return objects, nil
}

// Put uploads a local file to the given full key
func (s *S3Store) Put(ctx context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", localPath, err)
	}
	defer file.Close()

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Delete removes one object
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
