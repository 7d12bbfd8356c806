// Package uploads stores part images and serves them back. Two backends are
// available: a local directory for development and MinIO for deployments with
// shared object storage.
package uploads

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload carries one incoming file. Content is read exactly once by Save.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ImageStore persists uploaded images under generated names and streams them
// back for serving.
type ImageStore interface {
	// Save writes the upload and returns the generated reference name.
	Save(ctx context.Context, up *Upload) (string, error)

	// Put writes the upload under a fixed name, replacing any existing
	// object. Used for seeded assets like the placeholder image.
	Put(ctx context.Context, name string, up *Upload) error

	// Open streams a previously saved image. Missing objects surface as
	// api.ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// UniqueName builds a collision-resistant object name that keeps the original
// file extension so Content-Type can be derived when serving.
func UniqueName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}
