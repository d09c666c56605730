// Package config loads and validates application configuration from
// environment variables and an optional config file.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Ingest   IngestConfig   `mapstructure:"ingest"   validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and token settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// IngestConfig controls document submission handling.
type IngestConfig struct {
	// UploadDir is where submitted file bytes are spooled until a worker
	// picks them up.
	UploadDir string `mapstructure:"upload_dir" validate:"required"`

	// MaxUploadSizeMB bounds a single file submission.
	MaxUploadSizeMB int `mapstructure:"max_upload_size_mb" validate:"required,gt=0"`
}

// WorkerConfig controls the background conversion pool.
type WorkerConfig struct {
	// Count is the number of concurrent conversion workers.
	Count int `mapstructure:"count" validate:"required,gt=0"`

	// QueueSize is the buffer size of the in-memory job ID queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// StuckJobAgeMinutes is how long a job may sit in processing before
	// the monitor releases it back to pending.
	StuckJobAgeMinutes int `mapstructure:"stuck_job_age_minutes" validate:"required,gt=0"`

	// MonitorIntervalSeconds is how often the monitor sweeps for stuck
	// processing jobs and unqueued pending jobs.
	MonitorIntervalSeconds int `mapstructure:"monitor_interval_seconds" validate:"required,gt=0"`

	// FetchTimeoutSeconds bounds the download of a URL submission.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" validate:"required,gt=0"`
}
