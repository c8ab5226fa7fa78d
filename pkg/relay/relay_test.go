package relay_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlink/peerlink/pkg/codegen"
	"github.com/peerlink/peerlink/pkg/logging"
	"github.com/peerlink/peerlink/pkg/registry"
	"github.com/peerlink/peerlink/pkg/relay"
	"github.com/peerlink/peerlink/pkg/storage"
)

const uploadDir = "/uploads"

type fixture struct {
	svc    *relay.Service
	fs     afero.Fs
	store  *storage.Store
	clock  *relay.ManualClock
	logger *logging.Logger
}

func newFixture(t *testing.T, opts relay.Options, genOpts ...codegen.Option) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	store, err := storage.New(fs, uploadDir)
	require.NoError(t, err)

	clock := relay.NewManualClock(time.Now())
	if opts.Clock == nil {
		opts.Clock = clock
	}
	logger := logging.NewTestLogger()

	svc := relay.NewService(store, registry.New(), codegen.New(genOpts...), logger, opts)
	return &fixture{svc: svc, fs: fs, store: store, clock: clock, logger: logger}
}

func (f *fixture) keys(t *testing.T) []string {
	t.Helper()
	keys, err := f.store.List()
	require.NoError(t, err)
	return keys
}

func (f *fixture) download(t *testing.T, code int) []byte {
	t.Helper()
	dl, err := f.svc.Retrieve(context.Background(), code)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, dl.Send(context.Background(), &out))
	return out.Bytes()
}

func TestNewServiceDefaults(t *testing.T) {
	t.Parallel()

	store, err := storage.New(afero.NewMemMapFs(), uploadDir)
	require.NoError(t, err)

	svc := relay.NewService(store, nil, nil, logging.NewTestLogger(), relay.Options{MaxFileSize: -1})
	opts := svc.Options()
	assert.Equal(t, relay.DefaultTTL, opts.TTL)
	assert.Equal(t, relay.DefaultMaxRequestSize, opts.MaxRequestSize)
	assert.Zero(t, opts.MaxFileSize)
	assert.NotNil(t, opts.Clock)
	assert.NotEmpty(t, opts.Tokens())
	assert.NotNil(t, svc.Sessions())
	assert.Same(t, store, svc.Store())
}

func TestCloseRemovesLiveFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Options{})
	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := f.svc.Ingest(context.Background(), strings.NewReader(name), name)
		require.NoError(t, err)
	}
	require.Len(t, f.keys(t), 2)

	require.NoError(t, f.svc.Close())
	assert.Empty(t, f.keys(t))
	assert.Zero(t, f.svc.Sessions().Len())
}

func TestManualClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := relay.NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())

	assert.WithinDuration(t, time.Now(), relay.SystemClock().Now(), time.Second)
}
