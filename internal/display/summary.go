// Package display renders the end-of-run summary for operators, with colors
// when the terminal supports them.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"pg-s3-backup/internal/backup"
)

// SummaryPrinter writes the run summary
type SummaryPrinter struct {
	out            io.Writer
	colorSupported bool
	profile        termenv.Profile
}

// NewSummaryPrinter creates a printer writing to stdout
func NewSummaryPrinter() *SummaryPrinter {
	return &SummaryPrinter{
		out:            os.Stdout,
		colorSupported: detectColorSupport(),
		profile:        termenv.ColorProfile(),
	}
}

// NewSummaryPrinterTo creates a printer writing to out with colors disabled
func NewSummaryPrinterTo(out io.Writer) *SummaryPrinter {
	return &SummaryPrinter{out: out}
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// sprint applies a color when supported, plain text otherwise
func (p *SummaryPrinter) sprint(c *color.Color, format string, args ...interface{}) string {
	if !p.colorSupported {
		return fmt.Sprintf(format, args...)
	}
	return c.Sprintf(format, args...)
}

// Print renders the full run summary
func (p *SummaryPrinter) Print(summary *backup.RunSummary) {
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	fmt.Fprintf(p.out, "\nBackup run %s (prefix %s)\n", summary.RunID, summary.Prefix)

	fmt.Fprintf(p.out, "  Databases processed: %d\n", summary.DumpsAttempted)
	if summary.UploadsSucceeded > 0 {
		fmt.Fprintf(p.out, "  %s\n", p.sprint(good, "Uploaded: %d", summary.UploadsSucceeded))
	}
	if summary.DumpsFailed > 0 {
		fmt.Fprintf(p.out, "  %s\n", p.sprint(bad, "Failed dumps: %d", summary.DumpsFailed))
	}
	if summary.UploadsFailed > 0 {
		fmt.Fprintf(p.out, "  %s\n", p.sprint(bad, "Failed uploads: %d", summary.UploadsFailed))
	}

	switch {
	case !summary.RetentionRan:
		fmt.Fprintf(p.out, "  Retention: skipped\n")
	case summary.RetentionAborted:
		fmt.Fprintf(p.out, "  %s\n", p.sprint(warn, "Retention: aborted, nothing deleted"))
	default:
		r := summary.Retention
		fmt.Fprintf(p.out, "  Retention: deleted=%d kept=%d skipped_inactive=%d skipped_pattern=%d errors=%d\n",
			r.Deleted, r.Kept, r.SkippedInactive, r.SkippedPattern, r.Errors)
	}
}
