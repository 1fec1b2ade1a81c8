package wsstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/pkg/engconfig"
	"github.com/graphine/graphine/pkg/parallel"
)

func TestLocalStore_UploadDownloadRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "meta/0.bin", bytes.NewReader([]byte("hello"))))

	exists, err := store.Exists(ctx, "meta/0.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Download(ctx, "meta/0.bin")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStore_DownloadMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Download(context.Background(), "meta/99.bin")
	assert.Error(t, err)
}

func TestNew_DefaultsToLocal(t *testing.T) {
	s, err := New(engconfig.StorageConfig{LocalPath: t.TempDir()})
	require.NoError(t, err)
	_, ok := s.(*LocalStore)
	assert.True(t, ok)
}

func TestNew_RejectsIncompleteCOSConfig(t *testing.T) {
	_, err := New(engconfig.StorageConfig{Type: "cos"})
	assert.Error(t, err)
}

func TestFetchWorkspace_PullsAllBundleFiles(t *testing.T) {
	remoteDir := t.TempDir()
	store, err := NewLocalStore(remoteDir)
	require.NoError(t, err)

	ctx := context.Background()
	for _, dir := range bundleSuffixes {
		require.NoError(t, store.Upload(ctx, filepath.Join(dir, "0.bin"), bytes.NewReader([]byte(dir))))
		require.NoError(t, store.Upload(ctx, filepath.Join(dir, "1.bin"), bytes.NewReader([]byte(dir))))
	}

	localRoot := t.TempDir()
	err = FetchWorkspace(ctx, store, localRoot, []graph.GID{0, 1}, parallel.DefaultPoolConfig())
	require.NoError(t, err)

	for _, dir := range bundleSuffixes {
		for _, gid := range []string{"0", "1"} {
			_, statErr := os.Stat(filepath.Join(localRoot, dir, gid+".bin"))
			assert.NoError(t, statErr)
		}
	}
}

func TestPushResults_UploadsResultFiles(t *testing.T) {
	localRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(localRoot, "result"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(localRoot, "result", "0.vdata.bin"), []byte{1, 0, 0, 0, 0, 0, 0, 0}, 0o644))

	remoteDir := t.TempDir()
	store, err := NewLocalStore(remoteDir)
	require.NoError(t, err)

	err = PushResults(context.Background(), store, localRoot, []graph.GID{0}, parallel.DefaultPoolConfig())
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), filepath.Join("result", "0.vdata.bin"))
	require.NoError(t, err)
	assert.True(t, exists)
}
