// Package backup implements the backup run: the per-database artifact
// pipeline, the retention sweep over remote objects, and the coordinator that
// sequences both.
package backup

import (
	"fmt"
	"regexp"
	"time"
)

// The artifact naming contract. Upload filename construction and retention
// key parsing must stay in lockstep, so both live here and nowhere else.
//
// Every key this tool writes is <database>_<timestamp>.sql.gz, optionally
// suffixed .enc, where <timestamp> is UTC RFC3339-like with colons dropped
// for filename compatibility.

// TimestampLayout is the artifact timestamp format (UTC, no colons)
const TimestampLayout = "2006-01-02T150405Z"

// EncryptedSuffix is appended to encrypted artifacts
const EncryptedSuffix = ".enc"

// keyPattern anchors both ends. The database name is the greedy prefix up to
// the LAST _<timestamp> occurrence, so names containing underscores (or even
// an embedded _<timestamp>) still round-trip. The timestamp alternative with
// colons is accepted for keys written by older tooling.
var keyPattern = regexp.MustCompile(`^(.*)_(\d{4}-\d{2}-\d{2}(?:T\d{2}:\d{2}:\d{2}Z|T\d{6}Z))\.sql\.gz(?:\.enc)?$`)

// ArtifactFilename builds the dump filename for one database and run stamp
func ArtifactFilename(database string, stamp time.Time) string {
	return fmt.Sprintf("%s_%s.sql.gz", database, stamp.UTC().Format(TimestampLayout))
}

// ParseArtifactKey extracts the database name from an object key. ok is false
// for keys outside the naming contract; such objects are foreign data and
// must never be touched.
func ParseArtifactKey(key string) (database string, ok bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return m[1], true
}
