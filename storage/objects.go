// Package storage holds the remote collaborators of the upload pipeline: a
// content store for file bytes and a record store for lesson metadata.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBucket is the bucket uploaded learning material is written to.
const DefaultBucket = "learning-materials"

var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("object already exists")
	ErrInvalidPath = errors.New("invalid object path")
)

// ObjectStore keeps uploaded files on the local filesystem, one directory per
// bucket and one subdirectory per owner.
type ObjectStore struct {
	root   string
	logger *zap.Logger
	now    func() time.Time
}

type ObjectOption func(*ObjectStore)

func WithObjectLogger(logger *zap.Logger) ObjectOption {
	return func(s *ObjectStore) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) ObjectOption {
	return func(s *ObjectStore) {
		s.now = now
	}
}

// NewObjectStore creates the bucket directory under dir if needed.
func NewObjectStore(dir, bucket string, opts ...ObjectOption) (*ObjectStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	s := &ObjectStore{
		root:   filepath.Join(dir, bucket),
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	return s, nil
}

func (s *ObjectStore) Root() string {
	return s.root
}

// resolve maps an object path onto the filesystem, refusing anything that
// would escape the bucket.
func (s *ObjectStore) resolve(objectPath string) (string, error) {
	cleaned := path.Clean("/" + objectPath)
	if cleaned == "/" || strings.Contains(objectPath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}

	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

func objectName(ownerID string, at time.Time, name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = "bin"
	}

	return fmt.Sprintf("%s/%d.%s", ownerID, at.UnixMilli(), strings.ToLower(ext))
}

// Upload stores data as <owner>/<unix millis>.<ext> and returns that path.
// Existing objects are never overwritten.
func (s *ObjectStore) Upload(ctx context.Context, ownerID string, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if ownerID == "" || strings.ContainsAny(ownerID, "/\\") || ownerID == "." || ownerID == ".." {
		return "", fmt.Errorf("%w: owner %q", ErrInvalidPath, ownerID)
	}

	objectPath := objectName(ownerID, s.now(), name)

	full, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, objectPath)
		}
		return "", fmt.Errorf("failed to create object: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("failed to close object: %w", err)
	}

	s.logger.Debug("object stored",
		zap.String("path", objectPath),
		zap.Int("bytes", len(data)))

	return objectPath, nil
}

func (s *ObjectStore) Remove(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}

	s.logger.Debug("object removed", zap.String("path", objectPath))

	return nil
}

func (s *ObjectStore) Open(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}
