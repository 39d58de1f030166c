package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/usersvc/internal/filex"
)

// FileStore keeps blobs as files directly under a root directory.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed. A failure here is fatal for startup.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("blob root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Root returns the absolute storage directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(key string) (string, error) {
	if !filepath.IsLocal(key) || strings.ContainsRune(key, filepath.Separator) || strings.ContainsRune(key, '/') {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Write stores data under key, replacing any previous blob atomically.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.path(key); err != nil {
		return err
	}
	// the directory may have been removed underneath us since startup
	if _, err := filex.EnsureDir(s.root); err != nil {
		return err
	}
	return filex.WriteAtomic(s.root, key, data)
}

func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return err
	}
	return nil
}

// Stat returns the current modification time of key.
func (s *FileStore) Stat(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	p, err := s.path(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return Info{}, err
	}
	return Info{Key: key, ModTime: fi.ModTime()}, nil
}

// List returns the stored blobs. Temp files of in-flight writes are skipped.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		infos = append(infos, Info{Key: e.Name(), ModTime: fi.ModTime()})
	}
	return infos, nil
}
