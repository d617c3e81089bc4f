package account

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events an editor produces on save.
const reloadDebounce = 200 * time.Millisecond

// ErrNotFileBacked is returned by Watch for stores without a snapshot file.
var ErrNotFileBacked = errors.New("account: store is not file-backed")

// Watch reloads store whenever its snapshot file is changed by someone else.
// It blocks until ctx is done.
func Watch(ctx context.Context, store *Store) error {
	fs := fileSinkOf(store.sink)
	if fs == nil {
		return ErrNotFileBacked
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: atomic renames replace the file's inode.
	if err := w.Add(filepath.Dir(fs.Path())); err != nil {
		return err
	}
	slog.Info("account: watching snapshot", slog.String("path", fs.Path()))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isSnapshotChange(ev, fs.Path()) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("account: watcher error", slog.Any("error", err))
		case <-pending:
			pending = nil
			reloadIfForeign(ctx, store, fs)
		}
	}
}

func isSnapshotChange(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func reloadIfForeign(ctx context.Context, store *Store, fs *FileSink) {
	data, err := os.ReadFile(fs.Path())
	if err != nil {
		slog.Warn("account: read changed snapshot", slog.Any("error", err))
		return
	}
	if fs.WroteLast(data) {
		return
	}
	if err := store.Reload(ctx); err != nil {
		slog.Warn("account: reload failed, keeping current accounts", slog.Any("error", err))
	}
}

func fileSinkOf(s Sink) *FileSink {
	for {
		switch v := s.(type) {
		case *FileSink:
			return v
		case interface{ Unwrap() Sink }:
			s = v.Unwrap()
		default:
			return nil
		}
	}
}
