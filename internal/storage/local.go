package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps receipt files on the local filesystem under a single
// directory. Stored names are generated, never caller-controlled, so path
// traversal through upload names is not possible.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

func (s *LocalStore) Store(data []byte, namePrefix string, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	storedName := fmt.Sprintf("%s_%s%s", namePrefix, uuid.New().String(), ext)

	path := filepath.Join(s.dir, storedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write receipt file: %w", err)
	}

	s.logger.Info("receipt file stored", "stored_name", storedName, "bytes", len(data))
	return storedName, nil
}

func (s *LocalStore) Load(storedName string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(storedName)))
	if err != nil {
		return nil, fmt.Errorf("read receipt file %s: %w", storedName, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(storedName string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(storedName)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete receipt file %s: %w", storedName, err)
	}
	return nil
}
