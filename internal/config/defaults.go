package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultRawBucket       = "raw-video-bucket"
	defaultProcessedBucket = "processed-video-bucket"
	defaultRawDir          = "./raw-videos"
	defaultProcessedDir    = "./processed-videos"
	defaultTargetHeight    = 360
	defaultHTTPPort        = "3000"
	defaultClaimTTLSeconds = 3600
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Provider:        "gcs",
			RawBucket:       defaultRawBucket,
			ProcessedBucket: defaultProcessedBucket,
			ProcessedPrefix: "processed-",
			LocalRoot:       "./buckets",
		},
		Staging: Staging{
			RawDir:       defaultRawDir,
			ProcessedDir: defaultProcessedDir,
		},
		Transcode: Transcode{
			TargetHeight: defaultTargetHeight,
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
		},
		HTTP:  HTTP{Port: defaultHTTPPort},
		Redis: Redis{ClaimTTLSeconds: defaultClaimTTLSeconds},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables. Only non-empty values override.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("STORAGE_PROVIDER", &c.Storage.Provider)
	str("RAW_BUCKET", &c.Storage.RawBucket)
	str("PROCESSED_BUCKET", &c.Storage.ProcessedBucket)
	str("STORAGE_LOCAL_ROOT", &c.Storage.LocalRoot)
	str("GCS_CREDENTIALS_FILE", &c.Storage.CredentialsFile)
	str("PUBLIC_BASE_URL", &c.Storage.PublicBaseURL)
	str("S3_REGION", &c.Storage.S3Region)
	str("S3_ENDPOINT", &c.Storage.S3Endpoint)
	if err := boolean("S3_USE_PATH_STYLE", &c.Storage.S3UsePathStyle); err != nil {
		return err
	}
	if v, ok := lookup("PROCESSED_PREFIX"); ok {
		c.Storage.ProcessedPrefix = strings.TrimSpace(v)
	}

	str("GDRIVE_CLIENT_ID", &c.GDrive.ClientID)
	str("GDRIVE_CLIENT_SECRET", &c.GDrive.ClientSecret)
	str("GDRIVE_REFRESH_TOKEN", &c.GDrive.RefreshToken)
	str("GDRIVE_RAW_FOLDER_ID", &c.GDrive.RawFolderID)
	str("GDRIVE_PROCESSED_FOLDER_ID", &c.GDrive.ProcessedFolderID)

	str("LOCAL_RAW_DIR", &c.Staging.RawDir)
	str("LOCAL_PROCESSED_DIR", &c.Staging.ProcessedDir)
	if err := boolean("STAGING_ISOLATE_JOBS", &c.Staging.IsolateJobs); err != nil {
		return err
	}

	if err := integer("TARGET_HEIGHT", &c.Transcode.TargetHeight); err != nil {
		return err
	}
	str("FFMPEG_PATH", &c.Transcode.FFmpegPath)
	str("FFPROBE_PATH", &c.Transcode.FFprobePath)
	if err := boolean("TRANSCODE_VERIFY_OUTPUT", &c.Transcode.VerifyOutput); err != nil {
		return err
	}

	str("HTTP_PORT", &c.HTTP.Port)
	str("PORT", &c.HTTP.Port)
	str("DATABASE_URL", &c.Database.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	if err := integer("REDIS_CLAIM_TTL_SECONDS", &c.Redis.ClaimTTLSeconds); err != nil {
		return err
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return boolean("LOG_SOURCE", &c.Log.Source)
}

func (c *Config) normalize() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Staging.RawDir = filepath.Clean(strings.TrimSpace(c.Staging.RawDir))
	c.Staging.ProcessedDir = filepath.Clean(strings.TrimSpace(c.Staging.ProcessedDir))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if strings.TrimSpace(c.Transcode.FFmpegPath) == "" {
		c.Transcode.FFmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(c.Transcode.FFprobePath) == "" {
		c.Transcode.FFprobePath = "ffprobe"
	}
}
