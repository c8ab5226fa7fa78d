package cmd

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlink/peerlink/pkg/environment"
	"github.com/peerlink/peerlink/pkg/logging"
)

func testEnv() *environment.Environment {
	return &environment.Environment{
		Port:             8080,
		UploadDir:        "/srv/uploads",
		FileTTL:          time.Minute,
		SweepInterval:    time.Minute,
		MaxRequestSize:   500 << 20,
		CORSAllowOrigins: "*",
		Debug:            "0",
	}
}

func execute(t *testing.T, ctx context.Context, fs afero.Fs, env *environment.Environment, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand(ctx, fs, env, logging.NewTestLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand(context.Background(), afero.NewMemMapFs(), testEnv(), logging.NewTestLogger())
	require.NotNil(t, root)
	assert.Equal(t, "peerlink", root.Use)
	assert.NotEmpty(t, root.Version)

	var subNames []string
	for _, sub := range root.Commands() {
		subNames = append(subNames, sub.Use)
	}
	assert.Equal(t, []string{"serve", "sweep"}, subNames)
}

func TestSettingsFlagsResolve(t *testing.T) {
	flags := newSettingsFlags(testEnv())
	flags.maxRequestSize = "1MiB"
	flags.maxFileSize = "64 KiB"
	flags.debug = true

	s, err := flags.resolve()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), s.MaxRequestSize.Int64())
	assert.Equal(t, int64(64<<10), s.MaxFileSize.Int64())
	assert.True(t, s.DebugEnabled())

	flags.maxRequestSize = "huge"
	_, err = flags.resolve()
	assert.ErrorContains(t, err, "--max-request-size")

	flags = newSettingsFlags(testEnv())
	flags.settings.Port = 0
	_, err = flags.resolve()
	assert.ErrorContains(t, err, "PORT")
}

func TestSweepCommandRemovesStaleFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/old_a.txt", []byte("old"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/data/new_b.txt", []byte("new"), 0o600))
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, fs.Chtimes("/data/old_a.txt", stale, stale))

	out, err := execute(t, context.Background(), fs, testEnv(), "sweep", "--upload-dir", "/data", "--ttl", "10m")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 stale file(s) from /data")

	exists, err := afero.Exists(fs, "/data/old_a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fs, "/data/new_b.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := testEnv()
	env.Host = "127.0.0.1"
	env.Port = port
	out, err := execute(t, ctx, fs, env, "serve", "--upload-dir", "/relay")
	require.NoError(t, err)
	assert.Contains(t, out, "/upload")
	assert.Contains(t, out, "/download/<code>")

	exists, err := afero.DirExists(fs, "/relay")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServeRejectsInvalidFlags(t *testing.T) {
	_, err := execute(t, context.Background(), afero.NewMemMapFs(), testEnv(), "serve", "--ttl", "0s")
	assert.ErrorContains(t, err, "FILE_TTL")

	_, err = execute(t, context.Background(), afero.NewMemMapFs(), testEnv(), "serve", "extra-arg")
	assert.Error(t, err)
}

func TestBanner(t *testing.T) {
	env := testEnv()
	env.MaxFileSize = 1 << 20

	got := banner(":8080", env)
	assert.Contains(t, got, "POST http://localhost:8080/upload")
	assert.Contains(t, got, "GET  http://localhost:8080/download/<code>")
	assert.Contains(t, got, "500 MiB (1.0 MiB per file)")
	assert.Contains(t, got, "/srv/uploads")
}

func TestDisplayAddr(t *testing.T) {
	assert.Equal(t, "localhost:80", displayAddr(":80"))
	assert.Equal(t, "localhost:80", displayAddr("0.0.0.0:80"))
	assert.Equal(t, "10.0.0.5:80", displayAddr("10.0.0.5:80"))
	assert.Equal(t, "not-an-addr", displayAddr("not-an-addr"))
}
