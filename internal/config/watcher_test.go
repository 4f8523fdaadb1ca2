package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReload_SwapsOnlyRateLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg)
	require.Equal(t, ":9000", h.Get().Listen)
	require.Equal(t, 10, h.Get().RateLimit.Redeem.Rate)

	doc := `
listen: ":1111"
rate_limit:
  redeem:
    rate: 99
    window: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	h.reload(path)

	// Rate limits picked up; connection wiring untouched.
	assert.Equal(t, 99, h.Get().RateLimit.Redeem.Rate)
	assert.Equal(t, 10*time.Second, h.Get().RateLimit.Redeem.Window)
	assert.Equal(t, ":9000", h.Get().Listen)
}

func TestReload_KeepsPreviousOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  redeem:\n    rate: 7\n    window: 5s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg)

	require.NoError(t, os.WriteFile(path, []byte("rate_limit: [broken"), 0o600))
	h.reload(path)
	assert.Equal(t, 7, h.Get().RateLimit.Redeem.Rate, "bad file must not clobber live config")
}

func TestReloadIfChanged_SkipsUnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  redeem:\n    rate: 7\n    window: 5s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	lastMod := info.ModTime()

	// New content but the mtime pinned to the last-seen value: the poll tick
	// must not re-read the file.
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  redeem:\n    rate: 99\n    window: 5s\n"), 0o600))
	require.NoError(t, os.Chtimes(path, lastMod, lastMod))

	got := h.reloadIfChanged(path, lastMod)
	assert.Equal(t, lastMod, got)
	assert.Equal(t, 7, h.Get().RateLimit.Redeem.Rate, "unchanged mtime must not trigger a reload")

	// Once the mtime moves forward the same tick picks the edit up.
	future := lastMod.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	got = h.reloadIfChanged(path, lastMod)
	assert.True(t, got.After(lastMod))
	assert.Equal(t, 99, h.Get().RateLimit.Redeem.Rate)
}

func TestReloadIfChanged_MissingFileKeepsState(t *testing.T) {
	h := NewHolder(&Config{})
	mark := time.Now()
	got := h.reloadIfChanged(filepath.Join(t.TempDir(), "gone.yaml"), mark)
	assert.Equal(t, mark, got)
}
