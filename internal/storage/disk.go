package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mmeshcher/eorimag/internal/validation"
)

// DiskStore сохраняет загрузки в плоский каталог локальной файловой системы.
type DiskStore struct {
	dir string
}

// NewDiskStore создаёт хранилище и при необходимости каталог для него.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save записывает файл под новым уникальным именем и возвращает это имя.
func (s *DiskStore) Save(ctx context.Context, originalName string, data []byte) (string, error) {
	if !validation.IsAllowedDocument(originalName) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, originalName)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uniqueName(originalName)

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return name, nil
}

// Load читает сохранённый файл по имени.
func (s *DiskStore) Load(ctx context.Context, name string) ([]byte, error) {
	if !validStoredName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Locate возвращает путь к существующему сохранённому файлу.
func (s *DiskStore) Locate(name string) (string, error) {
	if !validStoredName(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("stat file: %w", err)
	}

	return path, nil
}

// Path возвращает путь к сохранённому файлу.
func (s *DiskStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}
