package crawl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManifestWriteAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewManifestSink(dir, zap.NewNop())
	require.NoError(t, err)

	path, err := sink.Write(context.Background(), Manifest{
		CategoryURL: "https://shop.test/catalog/pain/",
		Breadcrumbs: []string{"Каталог", "Обезболивающие"},
		ProductURLs: []string{"https://shop.test/b", "https://shop.test/a"},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "pain.json"), path)

	manifests, err := LoadManifests(dir)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	require.Equal(t, "https://shop.test/catalog/pain/", manifests[0].CategoryURL)
	require.Equal(t, []string{"Каталог", "Обезболивающие"}, manifests[0].Breadcrumbs)
	// Sorted and stable on disk.
	require.Equal(t, []string{"https://shop.test/a", "https://shop.test/b"}, manifests[0].ProductURLs)
}

func TestManifestWriteIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewManifestSink(dir, zap.NewNop())
	require.NoError(t, err)

	m := Manifest{
		CategoryURL: "https://shop.test/catalog/vitamins/",
		ProductURLs: []string{"https://shop.test/b", "https://shop.test/a", "https://shop.test/b"},
	}

	path, err := sink.Write(context.Background(), m)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = sink.Write(context.Background(), m)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestManifestSlugFallback(t *testing.T) {
	t.Parallel()

	sink, err := NewManifestSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	path, err := sink.Write(context.Background(), Manifest{CategoryURL: ""})
	require.NoError(t, err)
	require.Equal(t, "home.json", filepath.Base(path))

	path, err = sink.Write(context.Background(), Manifest{CategoryURL: "https://shop.test/catalog/боль/"})
	require.NoError(t, err)
	// Non-ASCII segments collapse to underscores, never to path separators.
	require.NotContains(t, filepath.Base(path), "/")
}

func TestLoadManifestsIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	sink, err := NewManifestSink(dir, zap.NewNop())
	require.NoError(t, err)
	_, err = sink.Write(context.Background(), Manifest{CategoryURL: "https://shop.test/catalog/pain/"})
	require.NoError(t, err)

	manifests, err := LoadManifests(dir)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
}

func TestManifestWriteCanceledContext(t *testing.T) {
	t.Parallel()

	sink, err := NewManifestSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.Write(ctx, Manifest{CategoryURL: "https://shop.test/catalog/pain/"})
	require.Error(t, err)
}
