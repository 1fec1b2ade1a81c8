package wsstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/pkg/parallel"
)

// bundleSuffixes are the five per-fragment files csrio reads and
// writes, keyed relative to the workspace root.
var bundleSuffixes = []string{"meta", "in_edges", "out_edges", "vdata", "localid2globalid"}

// FetchWorkspace pulls every gid's five-file CSR bundle from store down
// into localRoot, so csrio can read it as plain local disk regardless
// of whether the authoritative copy lives in a COS bucket. Transfers
// for distinct fragments run concurrently, bounded by cfg.MaxWorkers.
func FetchWorkspace(ctx context.Context, store Store, localRoot string, gids []graph.GID, cfg parallel.PoolConfig) error {
	type key struct {
		dir string
		gid graph.GID
	}
	var keys []key
	for _, gid := range gids {
		for _, dir := range bundleSuffixes {
			keys = append(keys, key{dir: dir, gid: gid})
		}
	}

	_, err := parallel.ForEach(ctx, keys, cfg, func(ctx context.Context, k key) error {
		name := fmt.Sprintf("%d.bin", k.gid)
		objectKey := filepath.Join(k.dir, name)
		localPath := filepath.Join(localRoot, k.dir, name)
		if err := store.DownloadFile(ctx, objectKey, localPath); err != nil {
			return fmt.Errorf("fetch %s: %w", objectKey, err)
		}
		return nil
	})
	return err
}

// PushResults uploads result/<gid>.vdata.bin for every gid from
// localRoot back to store, the counterpart call a remote-backed
// workspace makes once the engine run reaches fixpoint.
func PushResults(ctx context.Context, store Store, localRoot string, gids []graph.GID, cfg parallel.PoolConfig) error {
	_, err := parallel.ForEach(ctx, gids, cfg, func(ctx context.Context, gid graph.GID) error {
		name := fmt.Sprintf("%d.vdata.bin", gid)
		objectKey := filepath.Join("result", name)
		localPath := filepath.Join(localRoot, "result", name)
		if err := store.UploadFile(ctx, objectKey, localPath); err != nil {
			return fmt.Errorf("push %s: %w", objectKey, err)
		}
		return nil
	})
	return err
}
