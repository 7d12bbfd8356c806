package uploads

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

//go:embed placeholder.png
var placeholderPNG []byte

// EnsurePlaceholder seeds the bundled fallback image under the given name if
// the store does not have one yet. Parts without an image advertise this
// asset's URL, so it has to exist before the first request is served.
func EnsurePlaceholder(ctx context.Context, store ImageStore, name string) error {
	if name == "" {
		return nil
	}

	rc, err := store.Open(ctx, name)
	if err == nil {
		rc.Close()
		return nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("check placeholder %s: %w", name, err)
	}

	return store.Put(ctx, name, &Upload{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(placeholderPNG)),
		Content:     bytes.NewReader(placeholderPNG),
	})
}
