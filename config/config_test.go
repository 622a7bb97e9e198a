package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(120), cfg.Cache.PipelineRetention)
	assert.Equal(t, 2048, cfg.Shadows.MapSize)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[log]
level = "debug"

[shadows]
map_size = 1024

[pipeline]
outputs = ["normal", "velocity"]
reorder = true
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "lumen", cfg.Log.Prefix)
	assert.Equal(t, 1024, cfg.Shadows.MapSize)
	assert.Equal(t, []string{"normal", "velocity"}, cfg.Pipeline.Outputs)
	assert.True(t, cfg.Pipeline.Reorder)
	assert.Equal(t, 1280, cfg.Window.Width)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "[window]\ncolour = 3\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
		{"window size", "[window]\nwidth = 0\n"},
		{"shadow size", "[shadows]\nmap_size = 1000\n"},
		{"output", "[pipeline]\noutputs = [\"albedo\"]\n"},
		{"pipeline retention", "[cache]\npipeline_retention = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	assert.Contains(t, buf.String(), "[cache]")

	cfg, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan *Config, 8)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			updates <- cfg
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0o644))
	// a write may be observed while the file is still truncated
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-updates:
			if cfg.Log.Level == "warn" {
				return
			}
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
}
