package uploads

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePlaceholder(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedsMissingAsset", func(t *testing.T) {
		store := newDiskStore(t)

		require.NoError(t, EnsurePlaceholder(ctx, store, "placeholder.png"))

		rc, err := store.Open(ctx, "placeholder.png")
		require.NoError(t, err)
		defer rc.Close()

		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "\x89PNG"), "seeded asset is a PNG")
	})

	t.Run("LeavesExistingAssetAlone", func(t *testing.T) {
		store := newDiskStore(t)
		require.NoError(t, store.Put(ctx, "placeholder.png", &Upload{
			Filename: "placeholder.png",
			Content:  strings.NewReader("operator-supplied"),
		}))

		require.NoError(t, EnsurePlaceholder(ctx, store, "placeholder.png"))

		rc, err := store.Open(ctx, "placeholder.png")
		require.NoError(t, err)
		defer rc.Close()

		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "operator-supplied", string(content))
	})

	t.Run("EmptyNameIsANoop", func(t *testing.T) {
		store := newDiskStore(t)
		require.NoError(t, EnsurePlaceholder(ctx, store, ""))
	})
}
