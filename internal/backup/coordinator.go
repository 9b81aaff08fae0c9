package backup

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/logging"
)

// RunSummary accumulates the counters for one backup run. It is only ever
// appended to during the run and reported once at the end.
type RunSummary struct {
	RunID      string
	VersionTag string
	Prefix     string

	DumpsAttempted   int
	DumpsFailed      int
	UploadsSucceeded int
	UploadsFailed    int

	// RetentionRan is true when a sweep was attempted this run
	RetentionRan bool
	// RetentionAborted is true when a configured sweep could not run safely
	// (listing failure or unparseable window)
	RetentionAborted bool
	// Retention holds the sweep counters when the sweep completed
	Retention *SweepResult
}

// Failed reports whether any database's artifact never reached UPLOADED.
// The process exits non-zero in that case, after all databases were tried.
func (s *RunSummary) Failed() bool {
	return s.DumpsFailed > 0 || s.UploadsFailed > 0
}

// catalogProber determines the server version and the run's target databases
type catalogProber interface {
	ProbeVersion(ctx context.Context) (string, error)
	ListTargets(ctx context.Context) ([]string, error)
}

// artifactProcessor drives one database through the artifact pipeline
type artifactProcessor interface {
	Process(ctx context.Context, database string, stamp time.Time, prefix string) *Outcome
}

// retentionSweeper prunes expired remote artifacts
type retentionSweeper interface {
	Sweep(ctx context.Context, prefix, window string, activeTargets []string) (*SweepResult, error)
}

// Coordinator sequences a whole run: probe, per-database pipeline, retention.
// Databases are processed strictly one at a time; each artifact completes its
// local cleanup before the next dump begins.
type Coordinator struct {
	prober    catalogProber
	pipeline  artifactProcessor
	retention retentionSweeper
	// userPrefix is the optional operator key prefix, slash-trimmed
	userPrefix string
	// retentionWindow is the human window ("30 days"); empty disables sweeps
	retentionWindow string
	logger          *logging.Logger
	now             func() time.Time
}

// NewCoordinator creates a run coordinator
func NewCoordinator(prober catalogProber, pipeline artifactProcessor, retention retentionSweeper,
	userPrefix, retentionWindow string, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Coordinator{
		prober:          prober,
		pipeline:        pipeline,
		retention:       retention,
		userPrefix:      strings.Trim(userPrefix, "/"),
		retentionWindow: retentionWindow,
		logger:          logger,
		now:             time.Now,
	}
}

// JoinPrefix composes the full object key prefix from the optional user
// prefix and the server version tag, dropping empty parts
func JoinPrefix(userPrefix, versionTag string) string {
	var parts []string
	for _, p := range []string{userPrefix, versionTag} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// Run executes one backup run. The returned error is fatal (version probe
// failure, before any side effect on storage); everything else is isolated,
// counted, and reported through the summary.
func (c *Coordinator) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.New().String()
	c.logger.WithField("run_id", runID).Info("Starting backup run")

	versionTag, err := c.prober.ProbeVersion(ctx)
	if err != nil {
		return nil, err
	}

	prefix := JoinPrefix(c.userPrefix, versionTag)
	summary := &RunSummary{
		RunID:      runID,
		VersionTag: versionTag,
		Prefix:     prefix,
	}
	c.logger.Infof("Using object key prefix: %s", prefix)

	targets, err := c.prober.ListTargets(ctx)
	if err != nil {
		// Not fatal: an unreadable catalog means nothing to back up this
		// run. Retention is also skipped below, so a probe hiccup cannot
		// trigger a mass-skip sweep.
		c.logger.Errorf("Failed to list databases: %v", err)
		targets = nil
	}

	if len(targets) == 0 {
		c.logger.Warn("No databases found or specified to back up; skipping dump and upload steps")
	} else {
		// One timestamp per run so every artifact of the run shares it.
		stamp := c.now().UTC()

		for _, database := range targets {
			c.logger.Infof("--- Processing database: %s ---", database)
			summary.DumpsAttempted++

			outcome := c.pipeline.Process(ctx, database, stamp, prefix)
			switch {
			case outcome.Err == nil:
				summary.UploadsSucceeded++
			case errors.IsType(outcome.Err, errors.ErrorTypeUpload):
				summary.UploadsFailed++
			default:
				// Dump failures and fatal encryption failures alike:
				// no uploadable artifact was ever produced.
				summary.DumpsFailed++
			}
		}

		c.logger.Infof("Backup uploads finished. Successful uploads: %d, Failed dumps: %d, Failed uploads: %d",
			summary.UploadsSucceeded, summary.DumpsFailed, summary.UploadsFailed)
	}

	c.runRetention(ctx, summary, targets)

	return summary, nil
}

// runRetention applies the retention policy for this run. The sweep only ever
// sees the target list collected in this same run: with an empty list every
// matched object would fall into the inactive-skip path, so the sweep is
// skipped outright rather than churning through a guaranteed no-op that hides
// a probe failure.
func (c *Coordinator) runRetention(ctx context.Context, summary *RunSummary, targets []string) {
	if c.retentionWindow == "" {
		c.logger.Info("Retention window not set, skipping cleanup of old backups")
		return
	}
	if len(targets) == 0 {
		c.logger.Warn("Skipping cleanup because no active databases were determined in this run")
		return
	}

	summary.RetentionRan = true
	result, err := c.retention.Sweep(ctx, summary.Prefix, c.retentionWindow, targets)
	if err != nil {
		c.logger.Errorf("Retention sweep aborted: %v", err)
		summary.RetentionAborted = true
		return
	}
	summary.Retention = result
}
