package backup

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-s3-backup/internal/storage"
)

// fakeStore is an in-memory ObjectStore shared by the retention and pipeline
// tests. Keys in objects are relative to prefix, mirroring List's contract.
type fakeStore struct {
	prefix  string
	objects []storage.ObjectInfo

	listErr   error
	putErr    error
	deleteErr map[string]error // relative key -> error

	puts    []string // full keys in upload order
	deleted []string // relative keys in deletion order
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]storage.ObjectInfo, len(f.objects))
	copy(out, f.objects)
	return out, nil
}

func (f *fakeStore) Put(ctx context.Context, key, localPath string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	rel := strings.TrimPrefix(key, f.prefix+"/")
	if err := f.deleteErr[rel]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, rel)
	kept := f.objects[:0]
	for _, obj := range f.objects {
		if obj.Key != rel {
			kept = append(kept, obj)
		}
	}
	f.objects = kept
	return nil
}

// newTestEngine pins the engine clock to a known instant
func newTestEngine(store *fakeStore, now time.Time) *RetentionEngine {
	engine := NewRetentionEngine(store, nil)
	engine.now = func() time.Time { return now }
	return engine
}

var sweepNow = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

func remoteObject(key string, lastModified time.Time) storage.ObjectInfo {
	return storage.ObjectInfo{
		Key:          key,
		LastModified: lastModified.UTC().Format("2006-01-02 15:04:05"),
	}
}

func TestSweep_DeletesOnlyExpiredActiveArtifacts(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-01-01T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
			remoteObject("orders_2024-06-01T000000Z.sql.gz", sweepNow.Add(-24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Kept)
	assert.Equal(t, 0, result.SkippedInactive)
	assert.Equal(t, 0, result.SkippedPattern)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, []string{"orders_2024-01-01T000000Z.sql.gz"}, store.deleted)
}

func TestSweep_EmptyActiveSetDeletesNothing(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-01-01T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
			remoteObject("orders_2024-06-01T000000Z.sql.gz", sweepNow.Add(-24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 2, result.SkippedInactive)
	assert.Empty(t, store.deleted)
}

func TestSweep_InactiveDatabaseIsNeverDeletedRegardlessOfAge(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("decommissioned_2020-01-01T000000Z.sql.gz", sweepNow.Add(-4*365*24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 1, result.SkippedInactive)
	assert.Empty(t, store.deleted)
}

func TestSweep_PatternMismatchIsNeverDeleted(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("terraform.tfstate", sweepNow.Add(-400*24*time.Hour)),
			remoteObject("orders-manual-snapshot.sql.gz", sweepNow.Add(-400*24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 2, result.SkippedPattern)
	assert.Empty(t, store.deleted)
}

func TestSweep_ObjectExactlyAtCutoffIsKept(t *testing.T) {
	cutoff := sweepNow.Add(-30 * 24 * time.Hour)
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-05-03T000000Z.sql.gz", cutoff),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Kept)
	assert.Equal(t, 0, result.Deleted)
}

func TestSweep_IsIdempotent(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-01-01T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
			remoteObject("orders_2024-06-01T000000Z.sql.gz", sweepNow.Add(-24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	first, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)
	require.Equal(t, 1, first.Deleted)

	// No new uploads in between: the second sweep must delete nothing more.
	second, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 1, second.Kept)
	assert.Len(t, store.deleted, 1)
}

func TestSweep_ListingFailureAbortsSweep(t *testing.T) {
	store := &fakeStore{
		prefix:  "pg16",
		listErr: fmt.Errorf("connection refused"),
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.deleted)
}

func TestSweep_EmptyListingIsNoOp(t *testing.T) {
	store := &fakeStore{prefix: "pg16"}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})

	require.NoError(t, err)
	assert.Equal(t, &SweepResult{}, result)
}

func TestSweep_InvalidWindowAbortsWithoutListing(t *testing.T) {
	store := &fakeStore{
		prefix:  "pg16",
		listErr: fmt.Errorf("must not be called"),
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-01-01T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	for _, window := range []string{"", "soon", "30", "30 fortnights", "many days", "-1 days", "30 days ago"} {
		t.Run(fmt.Sprintf("window=%q", window), func(t *testing.T) {
			result, err := engine.Sweep(context.Background(), "pg16", window, []string{"orders"})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Empty(t, store.deleted)
		})
	}
}

func TestParseRetentionWindow(t *testing.T) {
	tests := []struct {
		window  string
		want    time.Duration
		wantErr bool
	}{
		{window: "30 days", want: 30 * 24 * time.Hour},
		{window: "1 day", want: 24 * time.Hour},
		{window: "7 DAYS", want: 7 * 24 * time.Hour},
		{window: "0 days", want: 0},
		{window: "30days", wantErr: true},
		{window: "thirty days", wantErr: true},
		{window: "30 weeks", wantErr: true},
		{window: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			got, err := ParseRetentionWindow(tt.window)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSweep_UnparseableTimestampIsCountedAndSkipped(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			{Key: "orders_2024-01-01T000000Z.sql.gz", LastModified: "not-a-date"},
			remoteObject("orders_2024-01-02T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"orders_2024-01-02T000000Z.sql.gz"}, store.deleted)
}

func TestSweep_DeletionFailureDoesNotAbortRemainingObjects(t *testing.T) {
	store := &fakeStore{
		prefix: "pg16",
		objects: []storage.ObjectInfo{
			remoteObject("orders_2024-01-01T000000Z.sql.gz", sweepNow.Add(-90*24*time.Hour)),
			remoteObject("orders_2024-01-02T000000Z.sql.gz", sweepNow.Add(-89*24*time.Hour)),
		},
		deleteErr: map[string]error{
			"orders_2024-01-01T000000Z.sql.gz": fmt.Errorf("access denied"),
		},
	}
	engine := newTestEngine(store, sweepNow)

	result, err := engine.Sweep(context.Background(), "pg16", "30 days", []string{"orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"orders_2024-01-02T000000Z.sql.gz"}, store.deleted)
}
