// Package postgres probes the source server: its major version (used as a
// storage namespace) and the catalog of databases to back up.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/logging"
	"pg-s3-backup/internal/runner"
)

// Prober issues catalog queries through psql
type Prober struct {
	runner runner.Runner
	// connOpts is the psql connection option string ("-h ... -p ... -U ...")
	connOpts string
	// singleDatabase, when set, bypasses catalog enumeration
	singleDatabase string
	logger         *logging.Logger
}

// NewProber creates a prober bound to one server
func NewProber(r runner.Runner, connOpts, singleDatabase string, logger *logging.Logger) *Prober {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Prober{
		runner:         r,
		connOpts:       connOpts,
		singleDatabase: singleDatabase,
		logger:         logger,
	}
}

// ProbeVersion determines the server's major version and returns it as a
// namespace tag such as "pg16". The tag isolates retention between server
// generations; it has no bearing on dump correctness.
func (p *Prober) ProbeVersion(ctx context.Context) (string, error) {
	p.logger.Info("Determining PostgreSQL server version")

	command := fmt.Sprintf("psql %s -d postgres -t -c 'SHOW server_version;'", p.connOpts)
	output, err := p.runner.Run(ctx, command, false)
	if err != nil {
		return "", errors.NewVersionError("failed to query server version", err)
	}

	tag, err := parseVersionTag(output)
	if err != nil {
		return "", err
	}

	p.logger.Infof("PostgreSQL server version determined: %s", tag)
	return tag, nil
}

// parseVersionTag extracts the leading major version from output shaped like
// "16.2 (Debian 16.2-1.pgdg120+1)" and normalizes it to "pg16"
func parseVersionTag(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", errors.NewVersionError("empty server version output", nil)
	}

	major, _, _ := strings.Cut(fields[0], ".")
	if major == "" || !isDigits(major) {
		return "", errors.NewVersionError(
			fmt.Sprintf("could not parse major version from output %q", output), nil)
	}

	return "pg" + major, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ListTargets enumerates the databases to back up in this run. With a
// single-database override configured the server is not queried at all.
// An empty result is not an error; it means there is nothing to back up.
func (p *Prober) ListTargets(ctx context.Context) ([]string, error) {
	if p.singleDatabase != "" {
		p.logger.Infof("Backing up specific database: %s", p.singleDatabase)
		return []string{p.singleDatabase}, nil
	}

	p.logger.Info("Listing all non-template databases")

	command := fmt.Sprintf(
		`psql %s -d postgres -t -A -c "SELECT datname FROM pg_database WHERE datistemplate = false AND datname NOT IN ('postgres', 'template0', 'template1');"`,
		p.connOpts)
	output, err := p.runner.Run(ctx, command, false)
	if err != nil {
		return nil, errors.NewCommandError("failed to list databases", err)
	}

	// Catalog order is preserved, not re-sorted.
	databases := strings.Fields(output)
	if len(databases) == 0 {
		p.logger.Warn("No user databases found to back up")
		return nil, nil
	}

	p.logger.Infof("Databases found for backup: %s", strings.Join(databases, ", "))
	return databases, nil
}
