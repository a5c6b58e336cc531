package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	copyChunkSize   = 1 << 20
	maxExtensionLen = 10
)

// StoredFile describes a file written by FileStore.
type StoredFile struct {
	Path   string
	Size   int64
	SHA256 string
}

// FileStore keeps uploads on local disk under <dir>/<user_id>/<file_id><ext>.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("Failed to create storage directory", zap.String("dir", dir), zap.Error(err))
	}
	return &FileStore{
		dir:    dir,
		logger: logger,
	}
}

// Save streams r to disk, hashing while writing. A partial file is removed on error.
func (s *FileStore) Save(userID, fileID uuid.UUID, fileName string, r io.Reader) (*StoredFile, error) {
	userDir := filepath.Join(s.dir, userID.String())
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	path := filepath.Join(userDir, fileID.String()+storedExtension(fileName))
	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.CopyBuffer(io.MultiWriter(dst, hasher), r, make([]byte, copyChunkSize))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.Remove(path)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StoredFile{
		Path:   path,
		Size:   size,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Remove deletes a stored file, logging failures.
func (s *FileStore) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove stored file", zap.String("path", path), zap.Error(err))
	}
}

// Exists reports whether a stored file is still on disk.
func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func storedExtension(fileName string) string {
	ext := filepath.Ext(fileName)
	if len(ext) > maxExtensionLen {
		ext = ext[:maxExtensionLen]
	}
	return ext
}
