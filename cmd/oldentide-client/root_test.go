package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/oldentide-client/net"
)

// resetFlags undoes what earlier tests parsed into the shared root command.
func resetFlags(t *testing.T) {
	t.Helper()
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})
}

func TestSetup(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverHost: "file.example"
serverPort: 1337
codec: "protowire"
`), 0o644))

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", dir, "--port", "4000", "--local-port", "5000"}))

	cfg, cm, err := setup(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "file.example", cfg.ServerHost)
	assert.Equal(t, 4000, cfg.ServerPort, "flag overrides file")
	assert.Equal(t, 5000, cfg.LocalPort)
	assert.Equal(t, "protowire", cfg.Codec)
	assert.Equal(t, net.DefaultRequestTimeout, cfg.RequestTimeout)
	require.NoError(t, cm.Close())

	// without a file the flags must carry the server address
	require.NoError(t, os.Remove(path))
	_, _, err = setup(rootCmd)
	assert.ErrorContains(t, err, "serverHost")

	require.NoError(t, rootCmd.ParseFlags([]string{"--server", "127.0.0.1"}))
	cfg, cm, err = setup(rootCmd)
	require.NoError(t, err)
	defer cm.Close()
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, "msgpack", cfg.Codec)
}

func TestSetup_FlagCompletesPartialFile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.yaml"), []byte("serverPort: 1337\n"), 0o644))

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", dir, "--server", "127.0.0.1"}))
	cfg, cm, err := setup(rootCmd)
	require.NoError(t, err)
	defer cm.Close()

	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, 1337, cfg.ServerPort)

	got, err := cm.GetConfig("client")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got.(*net.ClientCfg).ServerHost, "flag kept in the managed section")
}

func TestServeMetrics_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serveMetrics(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
