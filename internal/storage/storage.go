// Package storage provides named document storage for zone catalogs.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Common errors.
var (
	ErrNotFound    = errors.New("document not found")
	ErrStorageFull = errors.New("storage capacity exceeded")
	ErrInvalidName = errors.New("invalid document name")
)

// Digest identifies a document version.
type Digest string

// ComputeDigest returns the SHA-256 of data in hex.
func ComputeDigest(data []byte) Digest {
	hash := sha256.Sum256(data)
	return Digest(hex.EncodeToString(hash[:]))
}

// Short returns the first 12 hex digits, enough for logs.
func (d Digest) Short() string {
	if len(d) < 12 {
		return string(d)
	}
	return string(d[:12])
}

// Storage defines the interface for catalog document storage.
type Storage interface {
	// Store saves data under name, replacing any previous version.
	Store(ctx context.Context, name string, data []byte) (Digest, error)
	// Load retrieves the document stored under name.
	Load(ctx context.Context, name string) ([]byte, error)
	// Delete removes a document.
	Delete(ctx context.Context, name string) error
	// Exists checks if a document exists.
	Exists(ctx context.Context, name string) (bool, error)
	// Close releases the backend.
	Close() error
}

// ValidateName rejects names that are empty or could escape a directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// MemoryStorage implements in-memory document storage.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[string][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage creates a new in-memory storage. A capacity of zero
// means unbounded.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[string][]byte),
		capacity: capacityMB * 1024 * 1024,
	}
}

func (s *MemoryStorage) Store(ctx context.Context, name string, data []byte) (Digest, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.size - int64(len(s.data[name])) + int64(len(data))
	if s.capacity > 0 && size > s.capacity {
		return "", ErrStorageFull
	}
	s.data[name] = append([]byte(nil), data...)
	s.size = size
	return ComputeDigest(data), nil
}

func (s *MemoryStorage) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.size -= int64(len(data))
	delete(s.data, name)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[name]
	return exists, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)
	s.size = 0
	return nil
}

// FileStorage keeps one file per document in a directory.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, name), nil
}

func (s *FileStorage) Store(ctx context.Context, name string, data []byte) (Digest, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	// Write atomically via temp file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return ComputeDigest(data), nil
}

func (s *FileStorage) Load(ctx context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}

func (s *FileStorage) Close() error {
	return nil
}
