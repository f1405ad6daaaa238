package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// dotenvFile is loaded before the environment is read. Variables already
// set in the process environment win over the file.
var dotenvFile = ".env"

// parseEnv overlays the environment onto config.
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", dotenvFile, err)
	}

	strs := map[string]*string{
		"PASSWORD_HASH":         &config.PasswordHash,
		"ADMIN_PASSWORD_HASH":   &config.AdminPasswordHash,
		"JWT_SECRET":            &config.JWTSecret,
		"TOKEN_ENCRYPTION_KEY":  &config.TokenEncryptionKey,
		"GOOGLE_CLIENT_ID":      &config.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":  &config.GoogleClientSecret,
		"GOOGLE_REDIRECT_URI":   &config.GoogleRedirectURI,
		"DATABASE_DSN":          &config.DatabaseDSN,
		"REDIS_ADDR":            &config.RedisAddr,
		"REDIS_PASSWORD":        &config.RedisPassword,
		"STORE_BACKEND":         &config.StoreBackend,
		"STORAGE_BACKEND":       &config.StorageBackend,
		"S3_BUCKET":             &config.S3Bucket,
		"S3_REGION":             &config.S3Region,
		"S3_ENDPOINT":           &config.S3BaseEndpoint,
		"AWS_ACCESS_KEY_ID":     &config.S3AccessKey,
		"AWS_SECRET_ACCESS_KEY": &config.S3SecretKey,
		"LOG_LEVEL":             &config.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		config.RedisDB = n
	}
	return nil
}
