// Package storage provides access to the single S3-compatible object storage
// target through a narrow interface so the pipeline and the retention engine
// can be exercised against fakes.
package storage

import "context"

// ObjectInfo describes one remote object as reported by a listing.
//
// LastModified is carried as the raw listing timestamp (UTC,
// "YYYY-MM-DD HH:MM:SS") rather than a parsed time: the retention engine owns
// timestamp parsing so that an unparseable value is counted and skipped there
// instead of being silently dropped by a driver.
type ObjectInfo struct {
	Key          string // relative to the listed prefix
	LastModified string
	Size         int64
}

// ObjectStore is the contract every storage driver satisfies: list the
// objects under a prefix, upload a local file, delete one object.
type ObjectStore interface {
	// List returns all objects under prefix. Keys are relative to prefix.
	// A listing failure is returned as an error; an empty listing is not.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Put uploads the local file at localPath to the given full key.
	Put(ctx context.Context, key, localPath string) error

	// Delete removes the object at the given full key.
	Delete(ctx context.Context, key string) error
}
