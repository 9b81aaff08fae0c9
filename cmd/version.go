package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set via SetVersionInfo from main)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"
	goVersion  = "unknown"
)

// SetVersionInfo records build-time version metadata for the version command
func SetVersionInfo(version, built, commit, goVer string) {
	appVersion = version
	buildTime = built
	gitCommit = commit
	goVersion = goVer
	rootCmd.Version = version
}

// versionCmd prints detailed build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pg-s3-backup %s\n", appVersion)
		fmt.Printf("  build time: %s\n", buildTime)
		fmt.Printf("  git commit: %s\n", gitCommit)
		fmt.Printf("  go version: %s\n", goVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
