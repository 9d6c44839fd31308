package httpcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const entrySuffix = ".json"

// FileStore keeps one JSON document per cache key in a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the cache directory on fsys if needed.
func NewFileStore(fsys afero.Fs, dir string) (*FileStore, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{fs: fsys, dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+entrySuffix)
}

func (s *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, nil
}

// Put writes the entry to a temp file and renames it into place.
func (s *FileStore) Put(_ context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(entry.Key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("list cache directory: %w", err)
	}

	deleted := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), entrySuffix) {
			continue
		}
		p := filepath.Join(s.dir, info.Name())

		// Entries that cannot be decoded are aged by their file time.
		created := info.ModTime()
		if data, err := afero.ReadFile(s.fs, p); err == nil {
			var entry Entry
			if json.Unmarshal(data, &entry) == nil && !entry.Created.IsZero() {
				created = entry.Created
			}
		}
		if !created.Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(p); err != nil {
			return deleted, fmt.Errorf("remove cache entry: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *FileStore) Close() error {
	return nil
}
