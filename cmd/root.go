package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pg-s3-backup/internal/backup"
	"pg-s3-backup/internal/config"
	"pg-s3-backup/internal/display"
	"pg-s3-backup/internal/logging"
	"pg-s3-backup/internal/postgres"
	"pg-s3-backup/internal/runner"
	"pg-s3-backup/internal/storage"
)

var cfgFile string

// CLI flag variables
var (
	verbose   bool
	quiet     bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pg-s3-backup",
	Short: "Back up PostgreSQL databases to S3-compatible object storage",
	Long: `pg-s3-backup performs one backup run of a PostgreSQL server: it probes the
server version, enumerates the databases to back up, dumps each one to a
compressed local file, optionally encrypts it, uploads it to object storage,
and finally prunes remote backups older than the configured retention window.

It is designed to be invoked by an external scheduler (cron, a Kubernetes
CronJob) and configured through environment variables, matching the usual
container deployment. A YAML config file can provide the same settings.

Examples:
  # Back up every non-template database on the server
  POSTGRES_HOST=db POSTGRES_USER=backup POSTGRES_PASSWORD=... \
  S3_ACCESS_KEY_ID=... S3_SECRET_ACCESS_KEY=... S3_BUCKET=backups \
  pg-s3-backup

  # Single database, encrypted artifacts, 30 day retention
  POSTGRES_DATABASE=orders ENCRYPTION_PASSWORD=... DELETE_OLDER_THAN="30 days" \
  pg-s3-backup

  # S3-compatible storage (MinIO) through the in-process SDK driver
  S3_ENDPOINT=http://minio:9000 STORAGE_DRIVER=sdk pg-s3-backup

  # Verbose run with a config file
  pg-s3-backup --config /etc/pg-s3-backup.yaml --verbose`,
	RunE:          runBackup,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pg-s3-backup.yaml)")

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "log format: text or json")
}

// initConfig locates the optional config file and wires environment lookup
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".pg-s3-backup")
		}
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildLogger resolves the effective log level and format from flags and
// configuration
func buildLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = logging.LogLevelVerbose
	}
	if quiet {
		level = logging.LogLevelQuiet
	}

	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}

	return logging.NewLogger(logging.Config{
		Level:  level,
		Format: format,
	})
}

// runBackup wires the components and executes one run. Configuration
// validation failures abort before any side effect; everything after that is
// accumulated into the run summary, and the process exits non-zero when any
// database's artifact never reached storage.
func runBackup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(viper.ConfigFileUsed())
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)
	logger.Info("Starting PostgreSQL backup run")

	for _, line := range cfg.AuditRequired() {
		logger.Info(line)
	}

	if cfg.S3.Region == "" {
		logger.Warnf("S3_REGION not set, defaulting to %s. Consider setting S3_REGION.", config.DefaultRegion)
	}
	if cfg.Encryption.Enabled() {
		logger.Info("ENCRYPTION_PASSWORD is set. Backups will be encrypted.")
	} else {
		logger.Info("ENCRYPTION_PASSWORD is not set. Backups will not be encrypted.")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
	} else if err := os.MkdirAll(workDir, 0700); err != nil {
		return fmt.Errorf("failed to create work directory %s: %w", workDir, err)
	}

	shellRunner := runner.NewShellRunner(cfg.CommandEnv(), logger)

	store, err := storage.NewObjectStore(&cfg.S3, shellRunner)
	if err != nil {
		return err
	}

	var encryptor backup.Encryptor
	if cfg.Encryption.Enabled() {
		switch cfg.Encryption.Mode {
		case config.EncryptionModeNative:
			encryptor = backup.NewNativeEncryptor(cfg.Encryption.Password, logger)
		default:
			encryptor = backup.NewOpenSSLEncryptor(shellRunner, cfg.Encryption.Password, logger)
		}
	}

	prober := postgres.NewProber(shellRunner, cfg.Postgres.ConnectionOpts(), cfg.Postgres.Database, logger)
	pipeline := backup.NewPipeline(shellRunner, store, encryptor, cfg.Postgres.ConnectionOpts(), workDir, logger)
	retention := backup.NewRetentionEngine(store, logger)

	coordinator := backup.NewCoordinator(prober, pipeline, retention,
		cfg.S3.Prefix, cfg.Retention.DeleteOlderThan, logger)

	summary, err := coordinator.Run(cmd.Context())
	if err != nil {
		// Fatal before any artifact work began (e.g. unparseable server version).
		return err
	}

	if !quiet {
		display.NewSummaryPrinter().Print(summary)
	}

	logger.Info("PostgreSQL backup run finished")

	if summary.Failed() {
		return fmt.Errorf("%d of %d databases did not reach storage",
			summary.DumpsFailed+summary.UploadsFailed, summary.DumpsAttempted)
	}
	return nil
}
