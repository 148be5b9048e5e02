package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/storage"
	"github.com/gabriel-vasile/mimetype"
)

// MaxFilesPerUpload caps how many files one upload request may carry.
const MaxFilesPerUpload = 10

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/heic"}

type UploadService struct {
	store    storage.Store
	maxBytes int64
}

func NewUploadService(store storage.Store, maxBytes int64) *UploadService {
	return &UploadService{
		store:    store,
		maxBytes: maxBytes,
	}
}

// Upload checks that every file is an image within the size limit and then
// stores them, returning their URLs in request order. Nothing is stored when
// any file is rejected.
func (s *UploadService) Upload(ctx context.Context, session *auth.Session, files []*multipart.FileHeader) ([]string, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newError(ErrInvalidInput, "No files provided")
	}
	if len(files) > MaxFilesPerUpload {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("At most %d files can be uploaded at once", MaxFilesPerUpload))
	}

	kinds := make([]*mimetype.MIME, len(files))
	for i, fh := range files {
		if fh.Size > s.maxBytes {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("File %s exceeds the %d MB limit", fh.Filename, s.maxBytes>>20))
		}
		kind, err := sniff(fh)
		if err != nil {
			return nil, err
		}
		if !mimetype.EqualsAny(kind.String(), allowedImageTypes...) {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("File %s is not a supported image", fh.Filename))
		}
		kinds[i] = kind
	}

	urls := make([]string, 0, len(files))
	for i, fh := range files {
		url, err := s.save(ctx, fh, kinds[i])
		if err != nil {
			logger.WithError(err, "upload_service").WithField("file", fh.Filename).Error("Failed to store upload")
			return nil, fmt.Errorf("failed to store %s: %w", fh.Filename, err)
		}
		urls = append(urls, url)
	}

	logger.WithUser(session.UserID, "upload_service").WithField("files", len(urls)).Info("Files uploaded")
	return urls, nil
}

func (s *UploadService) save(ctx context.Context, fh *multipart.FileHeader, kind *mimetype.MIME) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	body := io.LimitReader(f, s.maxBytes)
	return s.store.Save(ctx, storage.ObjectName(kind.Extension()), kind.String(), body)
}

func sniff(fh *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	kind, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return kind, nil
}
