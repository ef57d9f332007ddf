// Package config loads the service configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then a
// .env file in the working directory, then process environment variables.
// The result is normalized and validated before it is handed to the
// components, which receive it explicitly rather than reading globals.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Storage selects the remote object backend and the two buckets.
type Storage struct {
	Provider        string `toml:"provider"`
	RawBucket       string `toml:"raw_bucket"`
	ProcessedBucket string `toml:"processed_bucket"`
	// ProcessedPrefix is prepended to the raw object name to derive the
	// processed object name when the caller does not give one.
	ProcessedPrefix string `toml:"processed_prefix"`
	// LocalRoot is the root directory of the localfs provider.
	LocalRoot string `toml:"local_root"`
	// CredentialsFile points at a service account key for the gcs provider.
	// Empty means application default credentials.
	CredentialsFile string `toml:"credentials_file"`
	PublicBaseURL   string `toml:"public_base_url"`

	// S3 settings. Endpoint is only set for S3-compatible services.
	S3Region       string `toml:"s3_region"`
	S3Endpoint     string `toml:"s3_endpoint"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// GDrive configures the Google Drive provider. Each bucket maps to a folder.
type GDrive struct {
	ClientID          string `toml:"client_id"`
	ClientSecret      string `toml:"client_secret"`
	RefreshToken      string `toml:"refresh_token"`
	RawFolderID       string `toml:"raw_folder_id"`
	ProcessedFolderID string `toml:"processed_folder_id"`
}

// Staging configures the local scratch directories.
type Staging struct {
	RawDir       string `toml:"raw_dir"`
	ProcessedDir string `toml:"processed_dir"`
	// IsolateJobs prefixes local file names with the job ID so concurrent
	// jobs never share a staging path.
	IsolateJobs bool `toml:"isolate_jobs"`
}

// Transcode configures the ffmpeg invocation.
type Transcode struct {
	TargetHeight int    `toml:"target_height"`
	FFmpegPath   string `toml:"ffmpeg_path"`
	FFprobePath  string `toml:"ffprobe_path"`
	VerifyOutput bool   `toml:"verify_output"`
}

// HTTP configures the trigger endpoint.
type HTTP struct {
	Port string `toml:"port"`
}

// Database configures the video status store. Empty URL selects the
// in-memory store.
type Database struct {
	URL string `toml:"url"`
}

// Redis configures cross-instance claims. Empty address disables them.
type Redis struct {
	Addr            string `toml:"addr"`
	ClaimTTLSeconds int    `toml:"claim_ttl_seconds"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Source bool   `toml:"source"`
}

// Config is the full service configuration.
type Config struct {
	Storage   Storage   `toml:"storage"`
	GDrive    GDrive    `toml:"gdrive"`
	Staging   Staging   `toml:"staging"`
	Transcode Transcode `toml:"transcode"`
	HTTP      HTTP      `toml:"http"`
	Database  Database  `toml:"database"`
	Redis     Redis     `toml:"redis"`
	Log       Log       `toml:"log"`
}

// Load builds a configuration from defaults, the TOML file at path (skipped
// when path is empty), a .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.GDrive.ClientSecret = mask(out.GDrive.ClientSecret)
	out.GDrive.RefreshToken = mask(out.GDrive.RefreshToken)
	out.Database.URL = mask(out.Database.URL)
	return &out
}
