package storage

import (
	"context"
	"fmt"

	"videoproc/internal/adapters/storage/gcs"
	"videoproc/internal/adapters/storage/gdrive"
	"videoproc/internal/adapters/storage/localfs"
	"videoproc/internal/adapters/storage/s3"
	"videoproc/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewProvider builds the object store selected by cfg.Storage.Provider.
// Providers holding network clients also implement io.Closer.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case "localfs":
		return localfs.New(cfg.Storage.LocalRoot, cfg.Storage.PublicBaseURL), nil

	case "gcs":
		return gcs.New(ctx, cfg.Storage.CredentialsFile)

	case "s3":
		return s3.New(ctx, s3.Options{
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			UsePathStyle: cfg.Storage.S3UsePathStyle,
		})

	case "gdrive":
		return newGDriveProvider(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func newGDriveProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	conf := GDriveOAuthConfig(cfg.GDrive)
	tok := &oauth2.Token{RefreshToken: cfg.GDrive.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	folders := map[string]string{
		cfg.Storage.RawBucket:       cfg.GDrive.RawFolderID,
		cfg.Storage.ProcessedBucket: cfg.GDrive.ProcessedFolderID,
	}
	return gdrive.NewClient(srv, folders), nil
}

// GDriveOAuthConfig is shared with the gdrive-auth helper so the refresh
// token it mints carries the scopes the provider needs. Raw uploads are
// created by other clients, so the full drive scope is required to read them.
func GDriveOAuthConfig(g config.GDrive) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}
}
