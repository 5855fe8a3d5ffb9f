package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jrhy/livetree/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// options are the persistent flags; set ones override livetree.json.
type options struct {
	configPath string
	dir        string
	hub        string
	key        string
	codec      string
	s3Bucket   string
	s3Prefix   string
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:   "livetree",
		Short: "A serverless realtime tree store",
		Long: `livetree reads, writes and watches a realtime tree that is
persisted as one snapshot and optionally replicated through a
websocket hub.

Examples:
  livetree hub --listen :8080
  livetree --hub ws://localhost:8080/ws watch sessions/abc
  livetree --hub ws://localhost:8080/ws push sessions/abc/messages '{"author":"u1","text":"hi"}'
  livetree get sessions/abc`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.ConfigFileName, "Configuration file")
	flags.StringVar(&opts.dir, "dir", "", "Directory holding snapshot files")
	flags.StringVar(&opts.hub, "hub", "", "Replication hub URL, e.g. ws://localhost:8080/ws")
	flags.StringVar(&opts.key, "key", "", "Snapshot record name")
	flags.StringVar(&opts.codec, "codec", "", "Snapshot codec: json or proto")
	flags.StringVar(&opts.s3Bucket, "s3-bucket", "", "Persist snapshots in this S3 bucket instead of --dir")
	flags.StringVar(&opts.s3Prefix, "s3-prefix", "", "Key prefix for S3 snapshots")
	flags.AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		getCmd(&opts),
		setCmd(&opts),
		updateCmd(&opts),
		pushCmd(&opts),
		removeCmd(&opts),
		watchCmd(&opts),
		hubCmd(&opts),
		versionCmd(),
	)

	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// load reads the config file and applies flag overrides.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dir != "" {
		cfg.Dir = o.dir
	}
	if o.hub != "" {
		cfg.Hub = o.hub
	}
	if o.key != "" {
		cfg.Key = o.key
	}
	if o.codec != "" {
		cfg.Codec = o.codec
	}
	if o.s3Bucket != "" {
		cfg.S3.Bucket = o.s3Bucket
	}
	if o.s3Prefix != "" {
		cfg.S3.Prefix = o.s3Prefix
	}
	return cfg, cfg.Validate()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("livetree %s (%s)\n", version, commit)
		},
	}
}
