package watcher_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wostzone/bbtclient-go/pkg/watcher"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbtauth.yaml")
	err := ioutil.WriteFile(path, []byte("port: 8000\n"), 0600)
	require.NoError(t, err)

	var count int32
	fw, err := watcher.WatchFile(path, 50*time.Millisecond, func() error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	defer fw.Close()

	// quick changes are debounced into a single invocation
	for i := 0; i < 3; i++ {
		err = ioutil.WriteFile(path, []byte("port: 8001\n"), 0600)
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) == 1
	}, time.Second, 10*time.Millisecond)

	// other files in the directory are ignored
	err = ioutil.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0600)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	// replace by rename
	tmpPath := filepath.Join(dir, "bbtauth.tmp")
	err = ioutil.WriteFile(tmpPath, []byte("port: 8002\n"), 0600)
	require.NoError(t, err)
	err = os.Rename(tmpPath, path)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestWatchMissingFolder(t *testing.T) {
	_, err := watcher.WatchFile("/notafolder/bbtauth.yaml", 0, func() error { return nil })
	assert.Error(t, err)
}
