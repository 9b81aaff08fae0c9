package backup

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// VerifyDump checks that a completed dump file is usable: it exists, is
// non-empty, and is a well-formed gzip stream end to end. A compressor can
// exit zero and still leave a truncated stream behind; decoding to EOF is the
// only reliable guard.
func VerifyDump(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("dump file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("dump file %s is empty", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("dump file %s is not a valid gzip stream: %w", path, err)
	}
	defer zr.Close()

	if _, err := io.Copy(io.Discard, zr); err != nil {
		return fmt.Errorf("dump file %s is truncated or corrupt: %w", path, err)
	}
	return nil
}
