// Package storage saves uploaded files and returns the URL they are served
// from. Issues only ever record those URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/civicwatch/backend/internal/config"
	"github.com/google/uuid"
)

// Store persists one object under name and returns its public URL.
type Store interface {
	Save(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// ObjectName returns a fresh random name that keeps the extension of
// original, e.g. "3f0c...e1.jpg".
func ObjectName(original string) string {
	ext := strings.ToLower(path.Ext(original))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// New builds the Store selected by cfg.Storage.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix), nil
	case config.StorageS3:
		return NewS3StoreFromConfig(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.AWSEndpoint)
	case config.StorageCloudinary:
		return NewCloudinaryStoreFromURL(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
