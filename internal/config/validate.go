package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateStaging(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text", "cloud":
	default:
		return fmt.Errorf("log.format must be json, text or cloud, got %q", c.Log.Format)
	}
	if c.Redis.Addr != "" && c.Redis.ClaimTTLSeconds <= 0 {
		return errors.New("redis.claim_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "gcs", "s3":
		if strings.TrimSpace(c.Storage.RawBucket) == "" || strings.TrimSpace(c.Storage.ProcessedBucket) == "" {
			return errors.New("storage.raw_bucket and storage.processed_bucket must be set")
		}
	case "localfs":
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return errors.New("storage.local_root must be set for the localfs provider")
		}
		if strings.TrimSpace(c.Storage.RawBucket) == "" || strings.TrimSpace(c.Storage.ProcessedBucket) == "" {
			return errors.New("storage.raw_bucket and storage.processed_bucket must be set")
		}
	case "gdrive":
		if c.GDrive.ClientID == "" || c.GDrive.ClientSecret == "" || c.GDrive.RefreshToken == "" {
			return errors.New("gdrive.client_id, gdrive.client_secret and gdrive.refresh_token are required (run gdrive-auth to obtain a refresh token)")
		}
		if c.GDrive.RawFolderID == "" || c.GDrive.ProcessedFolderID == "" {
			return errors.New("gdrive.raw_folder_id and gdrive.processed_folder_id must be set")
		}
	default:
		return fmt.Errorf("unknown storage provider: %q", c.Storage.Provider)
	}
	if c.Storage.RawBucket == c.Storage.ProcessedBucket && c.Storage.Provider != "gdrive" {
		return errors.New("storage.raw_bucket and storage.processed_bucket must differ")
	}
	return nil
}

func (c *Config) validateStaging() error {
	if c.Staging.RawDir == "." || c.Staging.ProcessedDir == "." {
		return errors.New("staging.raw_dir and staging.processed_dir must be set")
	}
	raw, err := filepath.Abs(c.Staging.RawDir)
	if err != nil {
		return fmt.Errorf("staging.raw_dir: %w", err)
	}
	processed, err := filepath.Abs(c.Staging.ProcessedDir)
	if err != nil {
		return fmt.Errorf("staging.processed_dir: %w", err)
	}
	if raw == processed {
		return errors.New("staging.raw_dir and staging.processed_dir must differ")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	h := c.Transcode.TargetHeight
	if h <= 0 {
		return errors.New("transcode.target_height must be positive")
	}
	if h%2 != 0 {
		return errors.New("transcode.target_height must be even")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	port, err := strconv.Atoi(c.HTTP.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("http.port %q is not a valid port", c.HTTP.Port)
	}
	return nil
}
