package storage

import (
	"context"
	"testing"

	"videoproc/internal/config"
)

func TestNewProviderLocalFS(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Provider = "localfs"
	cfg.Storage.LocalRoot = t.TempDir()

	p, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Provider() != "localfs" {
		t.Fatalf("expected localfs, got %s", p.Provider())
	}
}

func TestNewProviderUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Provider = "ftp"
	if _, err := NewProvider(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestGDriveOAuthConfig(t *testing.T) {
	conf := GDriveOAuthConfig(config.GDrive{ClientID: "id", ClientSecret: "secret"})
	if conf.ClientID != "id" || len(conf.Scopes) != 1 {
		t.Fatalf("unexpected oauth config: %+v", conf)
	}
}
