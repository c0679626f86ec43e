package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps the catalog in memory and writes the whole document through
// to a single JSON file on every mutation.
//
// One lock covers load, mutate, encode and write, so concurrent mutations can
// never lose each other's updates. The lock is process-local: a second process
// writing the same file breaks that guarantee (use PostgresStore instead).
type FileStore struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	loaded bool
	doc    Catalog
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) List(_ context.Context) ([]Product, error) {
	var out []Product
	err := s.view(func(c Catalog) error {
		out = cloneAll(c.Productos)
		return nil
	})
	return out, err
}

func (s *FileStore) Get(_ context.Context, id int) (Product, error) {
	var out Product
	err := s.view(func(c Catalog) error {
		p, err := getIn(c, id)
		out = p
		return err
	})
	return out, err
}

func (s *FileStore) Create(_ context.Context, p Product) (Product, error) {
	var out Product
	err := s.mutate(func(c *Catalog) error {
		out = createIn(c, p)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product created", zap.Int("id", out.ID))
	return out, nil
}

func (s *FileStore) Update(_ context.Context, id int, p Product) (Product, error) {
	var out Product
	err := s.mutate(func(c *Catalog) error {
		u, err := updateIn(c, id, p)
		out = u
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product updated", zap.Int("id", id))
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id int) error {
	if err := s.mutate(func(c *Catalog) error { return deleteIn(c, id) }); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.Int("id", id))
	return nil
}

// Snapshot reports ErrNoCatalog whenever the document is absent on disk, even
// if an earlier load left a copy in memory. It never creates the file.
func (s *FileStore) Snapshot(ctx context.Context) ([]Product, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCatalog
	} else if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	return s.List(ctx)
}

func (s *FileStore) Ping(_ context.Context) error {
	return s.view(func(Catalog) error { return nil })
}

func (s *FileStore) view(fn func(c Catalog) error) error {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return fn(s.doc)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	return fn(s.doc)
}

// mutate applies fn to a copy of the catalog and commits it only once the new
// document is durably on disk.
func (s *FileStore) mutate(fn func(c *Catalog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc := newCatalog()
		if err := s.writeLocked(doc); err != nil {
			return err
		}
		s.log.Info("catalog initialized", zap.String("path", s.path), zap.Int("next_id", doc.NextID))
		s.doc, s.loaded = doc, true
		return nil
	case err != nil:
		return fmt.Errorf("read catalog: %w", err)
	}

	var doc Catalog
	if err := codec.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode catalog %s: %w", s.path, err)
	}
	if doc.repair() {
		s.log.Warn("catalog nextId behind stored ids, advanced", zap.Int("next_id", doc.NextID))
	}

	s.doc, s.loaded = doc, true
	return nil
}

// writeLocked replaces the document atomically: readers of the file see
// either the old or the new catalog, never a torn write.
func (s *FileStore) writeLocked(doc Catalog) error {
	raw, err := codec.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
