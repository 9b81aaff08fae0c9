package config

import (
	"fmt"
	"os"
	"strings"

	"pg-s3-backup/internal/errors"
)

// PostgresConfig holds the connection settings for the source server
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Database, when set, restricts the run to a single database instead of
	// enumerating the server catalog.
	Database string `yaml:"database"`
}

// ConnectionOpts returns the psql/pg_dump connection option string
func (p *PostgresConfig) ConnectionOpts() string {
	return fmt.Sprintf("-h %s -p %s -U %s", p.Host, p.Port, p.User)
}

// S3Config holds the object storage settings
type S3Config struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	// Endpoint overrides the AWS endpoint for S3-compatible storage
	Endpoint string `yaml:"endpoint"`
	// Prefix is the user key prefix, stored slash-trimmed
	Prefix string `yaml:"prefix"`
	// Driver selects how storage is reached: "awscli" (default) or "sdk"
	Driver string `yaml:"driver"`
}

// EndpointOption returns the aws CLI endpoint flag, or "" for AWS-hosted S3
func (s *S3Config) EndpointOption() string {
	if s.Endpoint == "" {
		return ""
	}
	return fmt.Sprintf("--endpoint-url %s", s.Endpoint)
}

// EncryptionConfig holds the optional artifact encryption settings
type EncryptionConfig struct {
	// Password enables the encrypt stage when non-empty
	Password string `yaml:"password"`
	// Mode selects the cipher implementation: "openssl" (default) or "native"
	Mode string `yaml:"mode"`
}

// Enabled reports whether artifacts should be encrypted before upload
func (e *EncryptionConfig) Enabled() bool {
	return e.Password != ""
}

// RetentionConfig holds the optional age-based pruning settings
type RetentionConfig struct {
	// DeleteOlderThan is the human retention window, e.g. "30 days".
	// Empty disables the retention sweep.
	DeleteOlderThan string `yaml:"delete_older_than"`
}

// Enabled reports whether a retention sweep should run
func (r *RetentionConfig) Enabled() bool {
	return r.DeleteOlderThan != ""
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete run configuration, constructed once at process start
// and passed explicitly into the coordinator. Inner components never read
// ambient environment state.
type Config struct {
	Postgres   PostgresConfig   `yaml:"postgres"`
	S3         S3Config         `yaml:"s3"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
	// WorkDir is where dump artifacts are staged before upload
	WorkDir string `yaml:"work_dir"`
}

const (
	// DefaultRegion is assumed when S3_REGION is unset
	DefaultRegion = "us-east-1"
	// DefaultPostgresPort is the standard PostgreSQL port
	DefaultPostgresPort = "5432"

	// DriverAWSCLI shells out to the aws CLI through the process runner
	DriverAWSCLI = "awscli"
	// DriverSDK uses the AWS SDK S3 client in-process
	DriverSDK = "sdk"

	// EncryptionModeOpenSSL shells out to openssl enc
	EncryptionModeOpenSSL = "openssl"
	// EncryptionModeNative encrypts in-process, OpenSSL-compatible
	EncryptionModeNative = "native"
)

// SetDefaults fills in defaulted values for unset fields
func (c *Config) SetDefaults() {
	if c.Postgres.Port == "" {
		c.Postgres.Port = DefaultPostgresPort
	}
	if c.S3.Driver == "" {
		c.S3.Driver = DriverAWSCLI
	}
	if c.Encryption.Mode == "" {
		c.Encryption.Mode = EncryptionModeOpenSSL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "normal"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// LoadFromEnvironment overlays configuration from the recognized environment
// variables. Environment values win over file values.
func (c *Config) LoadFromEnvironment() {
	setIfPresent := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setIfPresent(&c.Postgres.Host, "POSTGRES_HOST")
	setIfPresent(&c.Postgres.Port, "POSTGRES_PORT")
	setIfPresent(&c.Postgres.User, "POSTGRES_USER")
	setIfPresent(&c.Postgres.Password, "POSTGRES_PASSWORD")
	setIfPresent(&c.Postgres.Database, "POSTGRES_DATABASE")

	setIfPresent(&c.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setIfPresent(&c.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setIfPresent(&c.S3.Bucket, "S3_BUCKET")
	setIfPresent(&c.S3.Region, "S3_REGION")
	setIfPresent(&c.S3.Endpoint, "S3_ENDPOINT")
	setIfPresent(&c.S3.Prefix, "S3_PREFIX")
	setIfPresent(&c.S3.Driver, "STORAGE_DRIVER")

	setIfPresent(&c.Encryption.Password, "ENCRYPTION_PASSWORD")
	setIfPresent(&c.Encryption.Mode, "ENCRYPTION_MODE")

	setIfPresent(&c.Retention.DeleteOlderThan, "DELETE_OLDER_THAN")

	setIfPresent(&c.Logging.Level, "LOG_LEVEL")
	setIfPresent(&c.Logging.Format, "LOG_FORMAT")

	setIfPresent(&c.WorkDir, "BACKUP_DIR")

	c.S3.Prefix = strings.Trim(c.S3.Prefix, "/")
}

// requiredSettings maps setting names (as reported to the operator) to their
// values, in audit order. Names mirror the environment variable names the
// operator sets.
func (c *Config) requiredSettings() []struct {
	Name  string
	Value string
} {
	return []struct {
		Name  string
		Value string
	}{
		{"S3_ACCESS_KEY_ID", c.S3.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey},
		{"S3_BUCKET", c.S3.Bucket},
		{"POSTGRES_HOST", c.Postgres.Host},
		{"POSTGRES_USER", c.Postgres.User},
		{"POSTGRES_PASSWORD", c.Postgres.Password},
	}
}

// IsSensitiveSetting reports whether a setting's value must never be logged
func IsSensitiveSetting(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "PASSWORD") ||
		strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "KEY")
}

// AuditRequired returns one human line per required setting stating whether it
// is present, with sensitive values hidden. Used for the pre-run audit log.
func (c *Config) AuditRequired() []string {
	lines := make([]string, 0, len(c.requiredSettings()))
	for _, s := range c.requiredSettings() {
		switch {
		case s.Value == "":
			lines = append(lines, fmt.Sprintf("%s is NOT set", s.Name))
		case IsSensitiveSetting(s.Name):
			lines = append(lines, fmt.Sprintf("%s is set (value hidden)", s.Name))
		default:
			lines = append(lines, fmt.Sprintf("%s is set", s.Name))
		}
	}
	return lines
}

// Validate checks the configuration and reports all problems at once.
// It must be called before any side effect occurs.
func (c *Config) Validate() error {
	var missing []string
	for _, s := range c.requiredSettings() {
		if s.Value == "" {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return errors.NewConfigError(
			fmt.Sprintf("missing required settings: %s", strings.Join(missing, ", ")), nil)
	}

	switch c.S3.Driver {
	case DriverAWSCLI, DriverSDK:
	default:
		return errors.NewConfigError(
			fmt.Sprintf("unknown storage driver %q (expected %q or %q)", c.S3.Driver, DriverAWSCLI, DriverSDK), nil)
	}

	switch c.Encryption.Mode {
	case EncryptionModeOpenSSL, EncryptionModeNative:
	default:
		return errors.NewConfigError(
			fmt.Sprintf("unknown encryption mode %q (expected %q or %q)", c.Encryption.Mode, EncryptionModeOpenSSL, EncryptionModeNative), nil)
	}

	return nil
}

// CommandEnv returns the environment entries injected into every external
// command: the database password for psql/pg_dump and the storage credentials
// for the aws CLI.
func (c *Config) CommandEnv() []string {
	region := c.S3.Region
	if region == "" {
		region = DefaultRegion
	}
	return []string{
		"PGPASSWORD=" + c.Postgres.Password,
		"AWS_ACCESS_KEY_ID=" + c.S3.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + c.S3.SecretAccessKey,
		"AWS_DEFAULT_REGION=" + region,
	}
}
