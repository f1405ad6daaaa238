package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/resumegate/internal/flagx"
	"github.com/dmitrijs2005/resumegate/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Interval fields use
// timex.Duration, so both "24h" and integer nanoseconds are accepted.
// Keys missing from the file keep their current values.
type FileConfig struct {
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr"`

	StoreBackend  string `json:"store_backend" yaml:"store_backend"`
	DatabaseDSN   string `json:"database_dsn" yaml:"database_dsn"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `json:"redis_prefix" yaml:"redis_prefix"`

	JWTSecret          string `json:"jwt_secret" yaml:"jwt_secret"`
	PasswordHash       string `json:"password_hash" yaml:"password_hash"`
	AdminPasswordHash  string `json:"admin_password_hash" yaml:"admin_password_hash"`
	TokenEncryptionKey string `json:"token_encryption_key" yaml:"token_encryption_key"`

	MaxAttempts          int            `json:"max_attempts" yaml:"max_attempts"`
	LockoutDuration      timex.Duration `json:"lockout_duration" yaml:"lockout_duration"`
	RoleTokenValidity    timex.Duration `json:"role_token_validity" yaml:"role_token_validity"`
	SessionTokenValidity timex.Duration `json:"session_token_validity" yaml:"session_token_validity"`

	RetentionCap       int      `json:"retention_cap" yaml:"retention_cap"`
	TenantRetentionCap int      `json:"tenant_retention_cap" yaml:"tenant_retention_cap"`
	MaxUploadBytes     int64    `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	AllowedMimeTypes   []string `json:"allowed_mime_types" yaml:"allowed_mime_types"`
	VersionNamePrefix  string   `json:"version_name_prefix" yaml:"version_name_prefix"`

	StorageBackend  string `json:"storage_backend" yaml:"storage_backend"`
	LocalStorageDir string `json:"local_storage_dir" yaml:"local_storage_dir"`
	S3Region        string `json:"s3_region" yaml:"s3_region"`
	S3Bucket        string `json:"s3_bucket" yaml:"s3_bucket"`
	S3BaseEndpoint  string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3AccessKey     string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Prefix        string `json:"s3_prefix" yaml:"s3_prefix"`

	GoogleClientID     string `json:"google_client_id" yaml:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret" yaml:"google_client_secret"`
	GoogleRedirectURI  string `json:"google_redirect_uri" yaml:"google_redirect_uri"`
	DriveFolderName    string `json:"drive_folder_name" yaml:"drive_folder_name"`
	DriveBaseURL       string `json:"drive_base_url" yaml:"drive_base_url"`

	ThrottleRPS   float64 `json:"throttle_rps" yaml:"throttle_rps"`
	ThrottleBurst int     `json:"throttle_burst" yaml:"throttle_burst"`

	SweepInterval timex.Duration `json:"sweep_interval" yaml:"sweep_interval"`
	SweepGrace    timex.Duration `json:"sweep_grace" yaml:"sweep_grace"`

	TraceStdout     bool   `json:"trace_stdout" yaml:"trace_stdout"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
	CORSAllowOrigin string `json:"cors_allow_origin" yaml:"cors_allow_origin"`
	TrustRemoteAddr bool   `json:"trust_remote_addr" yaml:"trust_remote_addr"`
}

// parseFile overlays the file named by -c/-config onto config. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON. No flag means
// nothing to load.
func parseFile(config *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}
	return loadFile(config, path)
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	fc := fromConfig(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func fromConfig(c *Config) *FileConfig {
	return &FileConfig{
		HTTPAddr:             c.HTTPAddr,
		GRPCAddr:             c.GRPCAddr,
		StoreBackend:         c.StoreBackend,
		DatabaseDSN:          c.DatabaseDSN,
		RedisAddr:            c.RedisAddr,
		RedisPassword:        c.RedisPassword,
		RedisDB:              c.RedisDB,
		RedisPrefix:          c.RedisPrefix,
		JWTSecret:            c.JWTSecret,
		PasswordHash:         c.PasswordHash,
		AdminPasswordHash:    c.AdminPasswordHash,
		TokenEncryptionKey:   c.TokenEncryptionKey,
		MaxAttempts:          c.MaxAttempts,
		LockoutDuration:      timex.Duration{Duration: c.LockoutDuration},
		RoleTokenValidity:    timex.Duration{Duration: c.RoleTokenValidity},
		SessionTokenValidity: timex.Duration{Duration: c.SessionTokenValidity},
		RetentionCap:         c.RetentionCap,
		TenantRetentionCap:   c.TenantRetentionCap,
		MaxUploadBytes:       c.MaxUploadBytes,
		AllowedMimeTypes:     c.AllowedMimeTypes,
		VersionNamePrefix:    c.VersionNamePrefix,
		StorageBackend:       c.StorageBackend,
		LocalStorageDir:      c.LocalStorageDir,
		S3Region:             c.S3Region,
		S3Bucket:             c.S3Bucket,
		S3BaseEndpoint:       c.S3BaseEndpoint,
		S3AccessKey:          c.S3AccessKey,
		S3SecretKey:          c.S3SecretKey,
		S3Prefix:             c.S3Prefix,
		GoogleClientID:       c.GoogleClientID,
		GoogleClientSecret:   c.GoogleClientSecret,
		GoogleRedirectURI:    c.GoogleRedirectURI,
		DriveFolderName:      c.DriveFolderName,
		DriveBaseURL:         c.DriveBaseURL,
		ThrottleRPS:          c.ThrottleRPS,
		ThrottleBurst:        c.ThrottleBurst,
		SweepInterval:        timex.Duration{Duration: c.SweepInterval},
		SweepGrace:           timex.Duration{Duration: c.SweepGrace},
		TraceStdout:          c.TraceStdout,
		LogLevel:             c.LogLevel,
		CORSAllowOrigin:      c.CORSAllowOrigin,
		TrustRemoteAddr:      c.TrustRemoteAddr,
	}
}

func (f *FileConfig) apply(c *Config) {
	c.HTTPAddr = f.HTTPAddr
	c.GRPCAddr = f.GRPCAddr
	c.StoreBackend = f.StoreBackend
	c.DatabaseDSN = f.DatabaseDSN
	c.RedisAddr = f.RedisAddr
	c.RedisPassword = f.RedisPassword
	c.RedisDB = f.RedisDB
	c.RedisPrefix = f.RedisPrefix
	c.JWTSecret = f.JWTSecret
	c.PasswordHash = f.PasswordHash
	c.AdminPasswordHash = f.AdminPasswordHash
	c.TokenEncryptionKey = f.TokenEncryptionKey
	c.MaxAttempts = f.MaxAttempts
	c.LockoutDuration = f.LockoutDuration.Duration
	c.RoleTokenValidity = f.RoleTokenValidity.Duration
	c.SessionTokenValidity = f.SessionTokenValidity.Duration
	c.RetentionCap = f.RetentionCap
	c.TenantRetentionCap = f.TenantRetentionCap
	c.MaxUploadBytes = f.MaxUploadBytes
	c.AllowedMimeTypes = f.AllowedMimeTypes
	c.VersionNamePrefix = f.VersionNamePrefix
	c.StorageBackend = f.StorageBackend
	c.LocalStorageDir = f.LocalStorageDir
	c.S3Region = f.S3Region
	c.S3Bucket = f.S3Bucket
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.S3AccessKey = f.S3AccessKey
	c.S3SecretKey = f.S3SecretKey
	c.S3Prefix = f.S3Prefix
	c.GoogleClientID = f.GoogleClientID
	c.GoogleClientSecret = f.GoogleClientSecret
	c.GoogleRedirectURI = f.GoogleRedirectURI
	c.DriveFolderName = f.DriveFolderName
	c.DriveBaseURL = f.DriveBaseURL
	c.ThrottleRPS = f.ThrottleRPS
	c.ThrottleBurst = f.ThrottleBurst
	c.SweepInterval = f.SweepInterval.Duration
	c.SweepGrace = f.SweepGrace.Duration
	c.TraceStdout = f.TraceStdout
	c.LogLevel = f.LogLevel
	c.CORSAllowOrigin = f.CORSAllowOrigin
	c.TrustRemoteAddr = f.TrustRemoteAddr
}
