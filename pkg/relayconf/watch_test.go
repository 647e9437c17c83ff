package relayconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchPathReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  serverName:\n    - first\n"), 0o644))

	reloaded := make(chan ProxyConf, 1)
	w, err := WatchPath(path, func(c ProxyConf) { reloaded <- c })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  serverName:\n    - second\n"), 0o644))

	select {
	case conf := <-reloaded:
		require.Equal(t, []string{"second"}, conf.Server.ServerName)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
