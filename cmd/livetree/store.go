package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrhy/livetree"
	"github.com/jrhy/livetree/internal/config"
	"github.com/jrhy/livetree/persist/file"
	s3persist "github.com/jrhy/livetree/persist/s3"
	"github.com/jrhy/livetree/transport/ws"
)

const connectTimeout = 5 * time.Second

func newPersist(cfg *config.Config) (livetree.Persist, error) {
	if cfg.S3.Bucket == "" {
		return file.NewPersistForPath(cfg.Dir), nil
	}
	awsConfig := &aws.Config{}
	if cfg.S3.Region != "" {
		awsConfig.Region = aws.String(cfg.S3.Region)
	}
	if cfg.S3.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3persist.NewPersist(s3.New(sess), cfg.S3.Bucket, cfg.S3.Prefix), nil
}

// openStore opens the configured store. With a hub configured, it
// returns once the store has caught up with the hub's last snapshot, so
// that the command neither reads nor republishes a stale local tree.
func openStore(ctx context.Context, cfg *config.Config, registerer prometheus.Registerer) (*livetree.Store, error) {
	persist, err := newPersist(cfg)
	if err != nil {
		return nil, err
	}
	codec, err := livetree.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	storeConfig := &livetree.Config{
		Persist:           persist,
		Key:               cfg.Key,
		Codec:             codec,
		NotifyChangedOnly: cfg.NotifyChangedOnly,
		Registerer:        registerer,
	}
	var client *ws.Client
	if cfg.Hub != "" {
		client = ws.Dial(ctx, cfg.Hub, nil)
		storeConfig.Transport = client
	}
	s, err := livetree.Open(ctx, storeConfig)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, err
	}
	if client != nil {
		syncCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := client.WaitSynced(syncCtx)
		cancel()
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("connect to %s: %w", cfg.Hub, err)
		}
	}
	glog.V(1).Infof("opened %s (dir=%s bucket=%s hub=%s)", cfg.Key, cfg.Dir, cfg.S3.Bucket, cfg.Hub)
	return s, nil
}
