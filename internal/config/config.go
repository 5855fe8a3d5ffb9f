// Package config loads the livetree command's settings from
// livetree.json. Command-line flags override what the file says.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jrhy/livetree"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "livetree.json"

	// DefaultDir is where file-backed snapshots are kept.
	DefaultDir = ".livetree"

	// DefaultListen is the address the hub listens on.
	DefaultListen = ":8080"
)

// Config represents livetree.json.
type Config struct {
	// Dir holds snapshot files when S3 is not configured.
	Dir string `json:"dir,omitempty"`

	// Key names the snapshot record.
	Key string `json:"key,omitempty"`

	// Codec is "json" or "proto".
	Codec string `json:"codec,omitempty"`

	// Hub is the websocket URL of a replication hub, e.g.
	// ws://localhost:8080/ws. Empty means no replication.
	Hub string `json:"hub,omitempty"`

	// Listen is the hub's listen address.
	Listen string `json:"listen,omitempty"`

	// NotifyChangedOnly limits notifications for replicated snapshots to
	// paths whose value changed.
	NotifyChangedOnly bool `json:"notifyChangedOnly,omitempty"`

	// S3, when a bucket is set, persists snapshots as S3 objects instead
	// of files.
	S3 S3Config `json:"s3,omitempty"`

	configPath string
}

// S3Config locates the snapshot object.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
	// Endpoint overrides the AWS endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Dir:    DefaultDir,
		Key:    livetree.DefaultKey,
		Codec:  "json",
		Listen: DefaultListen,
	}
}

// Load reads livetree.json from dir. A missing file is not an error:
// the defaults are returned.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.Key == "" {
		c.Key = livetree.DefaultKey
	}
	if c.Codec == "" {
		c.Codec = "json"
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if _, err := livetree.CodecByName(c.Codec); err != nil {
		return err
	}
	if c.S3.Bucket == "" && (c.S3.Prefix != "" || c.S3.Endpoint != "") {
		return errors.New("s3: prefix or endpoint given without a bucket")
	}
	return nil
}

// Path returns the file the config was loaded from, or "" if defaults
// were used.
func (c *Config) Path() string {
	return c.configPath
}
