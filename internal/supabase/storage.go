package supabase

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/upload"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	storage "github.com/supabase-community/storage-go"
)

const cacheControl = "3600"

// StorageClient uploads job evidence to a public Supabase Storage bucket.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string

	mu       sync.Mutex
	lastName int64
	now      func() time.Time
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		now:     time.Now,
	}, nil
}

// Upload stores f under {jobID}/{unix millis}.{ext} without overwriting and
// returns its public url. Videos are always stored as video/mp4.
func (s *StorageClient) Upload(ctx context.Context, jobID string, f upload.File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	storagePath := ObjectPath(jobID, s.nextName(), f.Name, f.ContentType)
	contentType := NormalizeContentType(f.Kind, f.ContentType)
	cache := cacheControl
	upsert := false

	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(f.Data), storage.FileOptions{
		CacheControl: &cache,
		ContentType:  &contentType,
		Upsert:       &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id": jobID,
		"path":   storagePath,
		"bytes":  len(f.Data),
	}).Debug("object uploaded")

	return s.GetPublicURL(storagePath), nil
}

// nextName returns the current unix millis, bumped past the last name handed
// out so two uploads within the same millisecond never collide.
func (s *StorageClient) nextName() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now().UnixMilli()
	if n <= s.lastName {
		n = s.lastName + 1
	}
	s.lastName = n
	return n
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteFile(storagePath string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{storagePath})
	return err
}

// ObjectPath builds {jobID}/{millis}.{ext}. The extension comes from the
// file name, else from the content type, else "bin".
func ObjectPath(jobID string, millis int64, name, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		if mt := mimetype.Lookup(contentType); mt != nil {
			ext = strings.TrimPrefix(mt.Extension(), ".")
		}
	}
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d.%s", jobID, millis, ext)
}

func NormalizeContentType(kind models.MediaKind, contentType string) string {
	if kind == models.MediaVideo || strings.HasPrefix(contentType, "video/") {
		return "video/mp4"
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
