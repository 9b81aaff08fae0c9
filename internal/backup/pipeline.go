package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/logging"
	"pg-s3-backup/internal/runner"
	"pg-s3-backup/internal/storage"
)

// State is the artifact pipeline state. Each state is reachable only from its
// predecessor and every failure is terminal for this database's artifact; the
// run itself continues with the next database.
type State string

const (
	// StatePending: no work done yet
	StatePending State = "PENDING"
	// StateDumped: local dump exists and passed verification
	StateDumped State = "DUMPED"
	// StateEncrypted: ciphertext replaced the plaintext dump
	StateEncrypted State = "ENCRYPTED"
	// StateSkipEncrypt: proceeding with the plaintext artifact
	StateSkipEncrypt State = "SKIP_ENCRYPT"
	// StateUploaded: the artifact reached object storage
	StateUploaded State = "UPLOADED"
	// StateCleaned: the local file was removed after upload
	StateCleaned State = "CLEANED"
)

// Artifact is the local file produced by a dump, potentially transformed by
// encryption, en route to storage
type Artifact struct {
	Database  string
	LocalPath string
	CreatedAt time.Time
	Encrypted bool
	// RemoteKey is set once the upload succeeds
	RemoteKey string
	State     State
}

// Outcome is the result of processing one database
type Outcome struct {
	Artifact *Artifact
	// Uploaded is true when the artifact reached UPLOADED
	Uploaded bool
	// UnencryptedFallback is true when encryption failed but the plaintext
	// dump was uploaded instead
	UnencryptedFallback bool
	// Err is the typed failure (dump, encryption, upload), nil on success
	Err error
}

// Pipeline drives one database through dump, optional encrypt, upload, and
// local cleanup. There are no retries; local disk is always relieved before
// the next database starts.
type Pipeline struct {
	runner runner.Runner
	store  storage.ObjectStore
	// encryptor is nil when no passphrase is configured
	encryptor Encryptor
	// connOpts is the pg_dump connection option string
	connOpts string
	// workDir is where dumps are staged
	workDir string
	logger  *logging.Logger
}

// NewPipeline creates the artifact pipeline
func NewPipeline(r runner.Runner, store storage.ObjectStore, encryptor Encryptor, connOpts, workDir string, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Pipeline{
		runner:    r,
		store:     store,
		encryptor: encryptor,
		connOpts:  connOpts,
		workDir:   workDir,
		logger:    logger,
	}
}

// Process runs the full state machine for one database. stamp is the run
// timestamp shared by every artifact of the run; prefix is the full object
// key prefix including the server version tag.
func (p *Pipeline) Process(ctx context.Context, database string, stamp time.Time, prefix string) *Outcome {
	artifact := &Artifact{
		Database:  database,
		LocalPath: filepath.Join(p.workDir, ArtifactFilename(database, stamp)),
		CreatedAt: stamp.UTC(),
		State:     StatePending,
	}
	outcome := &Outcome{Artifact: artifact}

	if err := p.dump(ctx, artifact); err != nil {
		outcome.Err = err
		return outcome
	}

	if err := p.encrypt(ctx, artifact, outcome); err != nil {
		outcome.Err = err
		return outcome
	}

	uploadErr := p.upload(ctx, artifact, prefix)

	// Local cleanup happens regardless of the upload outcome: a failed
	// upload still leaves disk pressure behind.
	p.cleanupLocal(artifact)

	if uploadErr != nil {
		outcome.Err = uploadErr
		return outcome
	}
	outcome.Uploaded = true
	return outcome
}

// dump produces the compressed dump and verifies it. A command that exits
// zero but leaves a missing, empty, or corrupt file is still a failure, and
// any partial file is removed before returning.
func (p *Pipeline) dump(ctx context.Context, artifact *Artifact) error {
	start := time.Now()

	command := fmt.Sprintf(
		"pg_dump %s --no-password --dbname=%s --format=plain --no-owner --clean --no-acl | gzip > %s",
		p.connOpts, artifact.Database, artifact.LocalPath)

	if _, err := p.runner.Run(ctx, command, false); err != nil {
		p.removeLocal(artifact.LocalPath, "incomplete dump file")
		dumpErr := errors.NewDumpError(
			fmt.Sprintf("failed to dump database %s", artifact.Database), err)
		p.logger.LogArtifactStage(artifact.Database, "dump", time.Since(start), dumpErr)
		return dumpErr
	}

	if err := VerifyDump(artifact.LocalPath); err != nil {
		p.removeLocal(artifact.LocalPath, "unusable dump file")
		dumpErr := errors.NewDumpError(
			fmt.Sprintf("dump of database %s is unusable", artifact.Database), err)
		p.logger.LogArtifactStage(artifact.Database, "dump", time.Since(start), dumpErr)
		return dumpErr
	}

	artifact.State = StateDumped
	p.logger.LogArtifactStage(artifact.Database, "dump", time.Since(start), nil)
	return nil
}

// encrypt transforms the dump when an encryptor is configured. An encryption
// failure falls back to the plaintext artifact as long as it still exists;
// only when the plaintext is gone too does the whole artifact fail.
func (p *Pipeline) encrypt(ctx context.Context, artifact *Artifact, outcome *Outcome) error {
	if p.encryptor == nil {
		artifact.State = StateSkipEncrypt
		return nil
	}

	start := time.Now()
	encPath, err := p.encryptor.Encrypt(ctx, artifact.LocalPath)
	if err == nil {
		// Never leave plaintext and ciphertext side by side.
		if removeErr := os.Remove(artifact.LocalPath); removeErr != nil {
			p.logger.Warnf("Encryption succeeded but could not remove plaintext %s: %v",
				artifact.LocalPath, removeErr)
		}
		artifact.LocalPath = encPath
		artifact.Encrypted = true
		artifact.State = StateEncrypted
		p.logger.LogArtifactStage(artifact.Database, "encrypt", time.Since(start), nil)
		return nil
	}

	p.logger.LogArtifactStage(artifact.Database, "encrypt", time.Since(start), err)

	if _, statErr := os.Stat(artifact.LocalPath); statErr != nil {
		return errors.NewEncryptionError(
			fmt.Sprintf("encryption failed for %s and the plaintext dump is gone", artifact.Database), err)
	}

	p.logger.Warnf("Encryption failed for database %s; uploading UNENCRYPTED dump", artifact.Database)
	outcome.UnencryptedFallback = true
	artifact.State = StateSkipEncrypt
	return nil
}

// upload pushes the current artifact under <prefix>/<filename>
func (p *Pipeline) upload(ctx context.Context, artifact *Artifact, prefix string) error {
	start := time.Now()
	key := prefix + "/" + filepath.Base(artifact.LocalPath)

	if err := p.store.Put(ctx, key, artifact.LocalPath); err != nil {
		uploadErr := errors.NewUploadError(
			fmt.Sprintf("failed to upload artifact for database %s", artifact.Database), err)
		p.logger.LogArtifactStage(artifact.Database, "upload", time.Since(start), uploadErr)
		return uploadErr
	}

	artifact.RemoteKey = key
	artifact.State = StateUploaded
	p.logger.LogArtifactStage(artifact.Database, "upload", time.Since(start), nil)
	return nil
}

// cleanupLocal removes whatever local file remains. Removal failures are
// logged, never escalated: this is disk hygiene, not correctness.
func (p *Pipeline) cleanupLocal(artifact *Artifact) {
	err := os.Remove(artifact.LocalPath)
	if err != nil && !os.IsNotExist(err) {
		p.logger.Warnf("Could not remove local backup file %s: %v", artifact.LocalPath, err)
		return
	}
	if artifact.State == StateUploaded {
		artifact.State = StateCleaned
	}
}

// removeLocal deletes a partial file, logging on failure
func (p *Pipeline) removeLocal(path, what string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	p.logger.Debugf("Removing %s: %s", what, path)
	if err := os.Remove(path); err != nil {
		p.logger.Warnf("Could not remove %s %s: %v", what, path, err)
	}
}
