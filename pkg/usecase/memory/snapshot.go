package memory

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Backup copies the given local files (ledger database, index blob) to
// snapshot storage under prefix. Missing files are skipped: a store that
// never persisted an index has no blob to copy.
func Backup(ctx context.Context, storage adapter.Storage, prefix string, paths ...string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				logging.From(ctx).Warn("skipping missing file", "path", path)
				continue
			}
			return goerr.Wrap(err, "failed to open file for backup", goerr.V("path", path))
		}

		key := prefix + "/" + filepath.Base(path)
		w, err := storage.Put(ctx, key)
		if err != nil {
			f.Close()
			return goerr.Wrap(err, "failed to open storage writer", goerr.V("key", key))
		}

		if _, err := io.Copy(w, f); err != nil {
			f.Close()
			w.Close()
			return goerr.Wrap(err, "failed to upload snapshot", goerr.V("key", key))
		}
		f.Close()
		if err := w.Close(); err != nil {
			return goerr.Wrap(err, "failed to finalize snapshot", goerr.V("key", key))
		}

		logging.From(ctx).Info("uploaded snapshot", "path", path, "key", key)
	}

	return nil
}

// Restore downloads snapshot objects back to the given local paths. The
// target files are replaced atomically so an interrupted restore never
// leaves a half-written ledger or index.
func Restore(ctx context.Context, storage adapter.Storage, prefix string, paths ...string) error {
	for _, path := range paths {
		key := prefix + "/" + filepath.Base(path)
		r, err := storage.Get(ctx, key)
		if err != nil {
			return goerr.Wrap(err, "failed to open snapshot", goerr.V("key", key))
		}

		tmp, err := os.CreateTemp(filepath.Dir(path), ".restore-*")
		if err != nil {
			r.Close()
			return goerr.Wrap(err, "failed to create temporary file", goerr.V("path", path))
		}

		if _, err := io.Copy(tmp, r); err != nil {
			r.Close()
			tmp.Close()
			os.Remove(tmp.Name())
			return goerr.Wrap(err, "failed to download snapshot", goerr.V("key", key))
		}
		r.Close()
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", path))
		}

		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
		}

		logging.From(ctx).Info("restored snapshot", "key", key, "path", path)
	}

	return nil
}
