package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	log := logrus.New()
	log.SetOutput(os.Stderr)
	store, err := NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)
	return store
}

func TestSaveDeleteExists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	ref, err := store.Save([]byte("image-bytes"), "photo.JPG")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, RefPrefix))
	require.True(t, strings.HasSuffix(ref, ".jpg"), "extension should be preserved lowercased")
	require.True(t, store.Exists(ref))

	data, err := os.ReadFile(filepath.Join(store.Dir(), strings.TrimPrefix(ref, RefPrefix)))
	require.NoError(t, err)
	require.Equal(t, []byte("image-bytes"), data)

	require.True(t, store.Delete(ref))
	require.False(t, store.Exists(ref))
	require.False(t, store.Delete(ref), "second delete reports nothing removed")
}

func TestUniqueNames(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	a, err := store.Save([]byte("a"), "same.png")
	require.NoError(t, err)
	b, err := store.Save([]byte("b"), "same.png")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestManaged(t *testing.T) {
	t.Parallel()

	require.True(t, Managed("/uploads/abc.png"))
	require.False(t, Managed("/placeholder.svg"))
	require.False(t, Managed("https://example.com/pic.png"))
	require.False(t, Managed("/uploads/"))
	require.False(t, Managed("/uploads/../secret"))
}

func TestDeleteIgnoresUnmanagedRefs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.False(t, store.Delete("/placeholder.svg"))
	require.False(t, store.Delete("/uploads/../go.mod"))
	require.False(t, store.Exists("https://example.com/pic.png"))
}
