package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "a", "b")
		storage, err := New(nested)
		require.NoError(t, err)
		assert.Equal(t, nested, storage.rootPath)

		_, err = os.Stat(nested)
		assert.NoError(t, err)
	})

	t.Run("cleans the root path", func(t *testing.T) {
		tmp := t.TempDir()
		storage, err := New(filepath.Join(tmp, "docs", "..", "docs"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmp, "docs"), storage.rootPath)
	})
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	storage, err := New(t.TempDir())
	require.NoError(t, err)

	content := []byte("%PDF-1.4 test")
	id, err := storage.Put(ctx, content, ".pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, ".pdf"))

	got, err := storage.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	other, err := storage.Put(ctx, content, ".pdf")
	require.NoError(t, err)
	assert.NotEqual(t, id, other, "ids are unique")

	require.NoError(t, storage.Delete(ctx, id))
	_, err = storage.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, storage.Delete(ctx, id), "deleting twice is fine")
}

func TestPutRejectsBadExtension(t *testing.T) {
	storage, err := New(t.TempDir())
	require.NoError(t, err)

	for _, ext := range []string{"pdf", ".pdf/../../x", `.a\b`} {
		_, err := storage.Put(context.Background(), []byte("x"), ext)
		assert.Error(t, err, ext)
	}
}

func TestGetRefusesTraversal(t *testing.T) {
	root := t.TempDir()
	storage, err := New(filepath.Join(root, "blobs"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0o600))

	for _, id := range []string{"../secret.txt", "", "/etc/passwd"} {
		_, err := storage.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}
