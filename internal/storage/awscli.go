package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/runner"
)

// AWSCLIStore reaches S3 by shelling out to the aws CLI through the process
// runner. This is the default driver; credentials reach the CLI through the
// runner's injected environment.
type AWSCLIStore struct {
	runner runner.Runner
	bucket string
	// endpointOption is "--endpoint-url <url>" or "" for AWS-hosted S3
	endpointOption string
}

// NewAWSCLIStore creates a CLI-backed store for one bucket
func NewAWSCLIStore(r runner.Runner, bucket, endpointOption string) *AWSCLIStore {
	return &AWSCLIStore{
		runner:         r,
		bucket:         bucket,
		endpointOption: endpointOption,
	}
}

// List runs "aws s3 ls" over the prefix and parses its rows. Each row is
// "date time size name"; rows that do not even split into four fields are
// passed through with their raw text as the timestamp so the retention engine
// counts them as parse errors instead of this driver hiding them.
func (s *AWSCLIStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	command := strings.Join(fieldsNonEmpty(
		"aws s3 ls", s.endpointOption, fmt.Sprintf("s3://%s/%s/", s.bucket, prefix)), " ")

	output, err := s.runner.Run(ctx, command, false)
	if err != nil {
		return nil, errors.NewStorageError("failed to list bucket contents", err)
	}
	if output == "" {
		return nil, nil
	}

	var objects []ObjectInfo
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		objects = append(objects, parseListLine(line))
	}
	return objects, nil
}

// parseListLine splits one "aws s3 ls" row into an ObjectInfo
func parseListLine(line string) ObjectInfo {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		// Malformed row; surface it with an unparseable timestamp.
		return ObjectInfo{Key: line, LastModified: line}
	}

	size, _ := strconv.ParseInt(fields[2], 10, 64)
	return ObjectInfo{
		Key:          strings.Join(fields[3:], " "),
		LastModified: fields[0] + " " + fields[1],
		Size:         size,
	}
}

// Put uploads a local file with "aws s3 cp"
func (s *AWSCLIStore) Put(ctx context.Context, key, localPath string) error {
	command := strings.Join(fieldsNonEmpty(
		"aws s3 cp", s.endpointOption, localPath, fmt.Sprintf("s3://%s/%s", s.bucket, key)), " ")

	if _, err := s.runner.Run(ctx, command, false); err != nil {
		return errors.NewUploadError(fmt.Sprintf("failed to upload to s3://%s/%s", s.bucket, key), err)
	}
	return nil
}

// Delete removes one object with "aws s3 rm"
func (s *AWSCLIStore) Delete(ctx context.Context, key string) error {
	command := strings.Join(fieldsNonEmpty(
		"aws s3 rm", s.endpointOption, fmt.Sprintf("s3://%s/%s", s.bucket, key)), " ")

	if _, err := s.runner.Run(ctx, command, false); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to delete s3://%s/%s", s.bucket, key), err)
	}
	return nil
}

// fieldsNonEmpty drops empty parts so optional flags don't leave double spaces
func fieldsNonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
