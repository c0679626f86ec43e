package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// URLPrefix is how stored assets are referenced from products.
	URLPrefix  = "/uploads/"
	defaultExt = ".jpg"
)

var ErrNotFound = errors.New("asset not found")

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Sink stores uploaded assets under collision-free generated names.
type Sink struct {
	dir string
	log *zap.Logger
}

func NewSink(dir string, log *zap.Logger) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Sink{dir: dir, log: log}, nil
}

// Store writes r under a fresh name keeping the extension of filename and
// returns the reference path. The asset becomes visible only once complete.
func (s *Sink) Store(ctx context.Context, r io.Reader, filename string) (string, error) {
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + extension(filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp asset: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("publish asset: %w", err)
	}

	s.log.Info("asset stored", zap.String("name", name), zap.Int64("bytes", n))
	return URLPrefix + name, nil
}

// Open returns the stored asset called name. Anything that is not a plain
// stored file name is reported as ErrNotFound.
func (s *Sink) Open(name string) (*os.File, fs.FileInfo, error) {
	if !validName(name) {
		return nil, nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Resolve maps a product image reference ("/uploads/x.png" or "x.png") to the
// file on disk, if it exists.
func (s *Sink) Resolve(ref string) (string, bool) {
	name := strings.TrimPrefix(ref, URLPrefix)
	if !validName(name) {
		return "", false
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !extPattern.MatchString(ext) {
		return defaultExt
	}
	return ext
}

func validName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}
