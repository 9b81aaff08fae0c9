package backup

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/logging"
	"pg-s3-backup/internal/storage"
)

// listingTimeLayout is the last-modified format in storage listings,
// interpreted as UTC
const listingTimeLayout = "2006-01-02 15:04:05"

// SweepResult accumulates the per-object outcomes of one retention sweep.
// These counts are the sweep's only observable result besides deletions.
type SweepResult struct {
	Deleted int
	Kept    int
	// SkippedPattern counts objects outside the naming contract; assumed
	// foreign data, never deleted
	SkippedPattern int
	// SkippedInactive counts objects whose database is not in the run's
	// active set; never deleted, so a probe glitch cannot destroy the last
	// backup of a database
	SkippedInactive int
	// Errors counts per-object failures: unparseable timestamps and failed
	// deletions
	Errors int
}

// RetentionEngine prunes remote artifacts older than a configured window
type RetentionEngine struct {
	store  storage.ObjectStore
	logger *logging.Logger
	// now is swappable for tests
	now func() time.Time
}

// NewRetentionEngine creates a retention engine over the given store
func NewRetentionEngine(store storage.ObjectStore, logger *logging.Logger) *RetentionEngine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionEngine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ParseRetentionWindow parses a human window like "30 days" into a duration.
// Anything else is a configuration error; callers abort without deleting.
func ParseRetentionWindow(window string) (time.Duration, error) {
	fields := strings.Fields(window)
	if len(fields) != 2 {
		return 0, errors.NewRetentionError(
			fmt.Sprintf("invalid retention window %q (expected e.g. \"30 days\")", window), nil)
	}

	days, err := strconv.Atoi(fields[0])
	if err != nil || days < 0 {
		return 0, errors.NewRetentionError(
			fmt.Sprintf("invalid retention window %q (expected e.g. \"30 days\")", window), nil)
	}

	switch strings.ToLower(fields[1]) {
	case "day", "days":
	default:
		return 0, errors.NewRetentionError(
			fmt.Sprintf("invalid retention window %q (expected e.g. \"30 days\")", window), nil)
	}

	return time.Duration(days) * 24 * time.Hour, nil
}

// Sweep lists everything under prefix and deletes expired artifacts that
// belong to a currently-active database. The fail-safe posture: a listing
// failure or an unparseable window aborts the whole sweep with nothing
// deleted, and any object the engine cannot unambiguously attribute to an
// active database is skipped, never deleted. Per-object failures are counted
// and the sweep continues; every object gets an independent outcome.
func (e *RetentionEngine) Sweep(ctx context.Context, prefix, window string, activeTargets []string) (*SweepResult, error) {
	maxAge, err := ParseRetentionWindow(window)
	if err != nil {
		return nil, err
	}

	objects, err := e.store.List(ctx, prefix)
	if err != nil {
		// Without a complete listing no deletion decision is safe.
		return nil, errors.NewRetentionError("failed to list bucket contents for cleanup", err)
	}
	if len(objects) == 0 {
		e.logger.Infof("No files found under prefix %s; no cleanup needed", prefix)
		return &SweepResult{}, nil
	}

	cutoff := e.now().UTC().Add(-maxAge)
	e.logger.Infof("Cleanup cutoff date (UTC): %s", cutoff.Format(listingTimeLayout))

	active := make(map[string]struct{}, len(activeTargets))
	for _, name := range activeTargets {
		active[name] = struct{}{}
	}

	result := &SweepResult{}
	for _, obj := range objects {
		lastModified, err := time.Parse(listingTimeLayout, obj.LastModified)
		if err != nil {
			e.logger.Errorf("Could not parse last-modified %q for object %q", obj.LastModified, obj.Key)
			result.Errors++
			continue
		}

		database, ok := ParseArtifactKey(obj.Key)
		if !ok {
			e.logger.LogRetentionDecision(obj.Key, "skip", "pattern_mismatch")
			result.SkippedPattern++
			continue
		}

		if _, isActive := active[database]; !isActive {
			e.logger.LogRetentionDecision(obj.Key, "skip", "inactive_database")
			result.SkippedInactive++
			continue
		}

		// Strict less-than: an object exactly at the cutoff is kept.
		if !lastModified.Before(cutoff) {
			e.logger.LogRetentionDecision(obj.Key, "keep", "too_recent")
			result.Kept++
			continue
		}

		if err := e.store.Delete(ctx, prefix+"/"+obj.Key); err != nil {
			e.logger.Errorf("Failed to delete %s: %v", obj.Key, err)
			result.Errors++
			continue
		}
		e.logger.LogRetentionDecision(obj.Key, "delete", "expired")
		result.Deleted++
	}

	e.logger.Infof("Cleanup finished: deleted=%d kept=%d skipped_inactive=%d skipped_pattern=%d errors=%d",
		result.Deleted, result.Kept, result.SkippedInactive, result.SkippedPattern, result.Errors)
	return result, nil
}
