package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

var _ ImageStore = (*DiskStore)(nil)

// DiskStore keeps images in a local directory. It is the default backend and
// the one development runs use.
type DiskStore struct {
	logger *slog.Logger
	dir    string
}

func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("uploads directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir %s: %w", dir, err)
	}
	return &DiskStore{logger: logger, dir: dir}, nil
}

func (s *DiskStore) Save(ctx context.Context, up *Upload) (string, error) {
	name := UniqueName(up.Filename)
	if err := s.write(ctx, name, up, os.O_WRONLY|os.O_CREATE|os.O_EXCL); err != nil {
		return "", err
	}
	return name, nil
}

// Put overwrites, unlike Save, so re-seeding a fixed-name asset is harmless.
func (s *DiskStore) Put(ctx context.Context, name string, up *Upload) error {
	return s.write(ctx, name, up, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *DiskStore) write(ctx context.Context, name string, up *Upload, flags int) error {
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, errors.Join(api.ErrStorage, err))
	}
	defer f.Close()

	written, err := io.Copy(f, up.Content)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write %s: %w", name, errors.Join(api.ErrStorage, err))
	}

	s.logger.InfoContext(ctx, "Image saved to disk",
		slog.String("name", name), slog.Int64("bytes", written))
	return nil
}

// Open serves a stored image. The name is reduced to its base path first so a
// crafted "../" reference cannot escape the uploads directory.
func (s *DiskStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	clean := filepath.Base(filepath.Clean(name))
	if clean == "." || clean == ".." || strings.Contains(name, "..") {
		return nil, fmt.Errorf("image %q: %w", name, api.ErrNotFound)
	}

	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("image %q: %w", clean, api.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", clean, errors.Join(api.ErrStorage, err))
	}
	return f, nil
}
