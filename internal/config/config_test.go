package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrhy/livetree"
)

func TestNew(t *testing.T) {
	cfg := New()
	require.Equal(t, DefaultDir, cfg.Dir)
	require.Equal(t, livetree.DefaultKey, cfg.Key)
	require.Equal(t, "json", cfg.Codec)
	require.Equal(t, DefaultListen, cfg.Listen)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, New(), cfg)
	require.Equal(t, "", cfg.Path())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{
  "codec": "proto",
  "hub": "ws://localhost:9000/ws",
  "notifyChangedOnly": true,
  "s3": {"bucket": "chat", "prefix": "prod/"}
}
`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path())
	require.Equal(t, "proto", cfg.Codec)
	require.Equal(t, "ws://localhost:9000/ws", cfg.Hub)
	require.True(t, cfg.NotifyChangedOnly)
	require.Equal(t, S3Config{Bucket: "chat", Prefix: "prod/"}, cfg.S3)
	require.Equal(t, DefaultDir, cfg.Dir, "unset fields keep their defaults")
	require.Equal(t, DefaultListen, cfg.Listen)
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":    `{"codec":`,
		"codec":     `{"codec":"yaml"}`,
		"s3 bucket": `{"s3":{"prefix":"p/"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigFileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadFile(path)
			require.Error(t, err)
		})
	}
}
