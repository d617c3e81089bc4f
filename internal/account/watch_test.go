package account

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSnapshotChange(t *testing.T) {
	path := "/data/accounts.json"
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{"chmod", fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: path, Op: fsnotify.Remove}, false},
		{"other file", fsnotify.Event{Name: "/data/.accounts-1.tmp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSnapshotChange(tt.ev, path))
		})
	}
}

func TestWatch_NotFileBacked(t *testing.T) {
	s, err := NewStore(context.Background(), NewMemorySink(nil))
	require.NoError(t, err)
	assert.ErrorIs(t, Watch(context.Background(), s), ErrNotFileBacked)
}

func TestWatch_ReloadsForeignEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	s, err := NewStore(context.Background(), sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, s) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"edited","secret":"`+b64("k=v")+`"}]`), 0600))

	require.Eventually(t, func() bool {
		_, ok := s.Get("edited")
		return ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFileSinkOfUnwrapsSealed(t *testing.T) {
	fs, err := NewFileSink(filepath.Join(t.TempDir(), "a.json"))
	require.NoError(t, err)
	id, err := GenerateIdentity()
	require.NoError(t, err)

	assert.Same(t, fs, fileSinkOf(NewSealedSink(fs, id)))
	assert.Nil(t, fileSinkOf(NewMemorySink(nil)))
}
