// Package config handles configuration for the gateway: defaults, an
// optional YAML or JSON file, environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/lockout"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
	"github.com/dmitrijs2005/resumegate/internal/server/versions"
)

// Storage backends for uploaded files.
const (
	StorageS3    = "s3"
	StorageLocal = "local"
)

// Config holds runtime settings for the resumegate server.
//
// PasswordHash and AdminPasswordHash are bcrypt hashes. When one is empty
// the matching role cannot authenticate at all. Google settings are only
// needed for the multi-tenant routes.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreBackend  string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	JWTSecret          string
	PasswordHash       string
	AdminPasswordHash  string
	TokenEncryptionKey string

	MaxAttempts          int
	LockoutDuration      time.Duration
	RoleTokenValidity    time.Duration
	SessionTokenValidity time.Duration

	RetentionCap       int
	TenantRetentionCap int
	MaxUploadBytes     int64
	AllowedMimeTypes   []string
	VersionNamePrefix  string

	StorageBackend  string
	LocalStorageDir string
	S3Region        string
	S3Bucket        string
	S3BaseEndpoint  string
	S3AccessKey     string
	S3SecretKey     string
	S3Prefix        string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	DriveFolderName    string
	DriveBaseURL       string

	ThrottleRPS   float64
	ThrottleBurst int

	SweepInterval time.Duration
	SweepGrace    time.Duration

	TraceStdout     bool
	LogLevel        string
	CORSAllowOrigin string
	TrustRemoteAddr bool
}

// LoadDefaults populates Config with development defaults: SQLite and a
// local storage directory, no secrets.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":50051"

	c.StoreBackend = "sqlite"
	c.DatabaseDSN = "file:resumegate.db?_pragma=busy_timeout(5000)"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPrefix = "resumegate"

	c.MaxAttempts = lockout.DefaultMaxAttempts
	c.LockoutDuration = lockout.DefaultLockoutDuration
	c.RoleTokenValidity = auth.DefaultRoleTokenValidity
	c.SessionTokenValidity = auth.DefaultSessionTokenValidity

	c.RetentionCap = versions.DefaultCap
	c.TenantRetentionCap = 10
	c.MaxUploadBytes = 10 << 20
	c.AllowedMimeTypes = []string{"application/pdf"}
	c.VersionNamePrefix = versions.DefaultNamePrefix

	c.StorageBackend = StorageLocal
	c.LocalStorageDir = "data/resumes"
	c.S3Region = "us-east-1"
	c.S3Bucket = "resumes"

	c.DriveFolderName = storage.DefaultDriveFolder
	c.DriveBaseURL = storage.DefaultDriveBaseURL

	c.ThrottleRPS = 5
	c.ThrottleBurst = 10

	c.SweepInterval = time.Hour
	c.SweepGrace = 24 * time.Hour

	c.LogLevel = "info"
	c.CORSAllowOrigin = "*"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and finally command-line
// flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MultiTenant reports whether the Google sign-in routes are configured.
func (c *Config) MultiTenant() bool {
	return c.GoogleClientID != ""
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StorageBackend {
	case StorageLocal:
		if c.LocalStorageDir == "" {
			errs = append(errs, errors.New("local storage dir is required"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}
	if c.MultiTenant() {
		if c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required with GOOGLE_CLIENT_ID"))
		}
		if c.TokenEncryptionKey == "" {
			errs = append(errs, errors.New("TOKEN_ENCRYPTION_KEY is required with GOOGLE_CLIENT_ID"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
