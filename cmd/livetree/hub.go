package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jrhy/livetree/transport/ws"
)

func hubCmd(o *options) *cobra.Command {
	var (
		listen     string
		noReplay   bool
		sendBuffer int
	)
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Run a replication hub",
		Long: `Run a websocket hub that relays snapshots between livetree
instances. Instances join with --hub ws://<listen>/ws.

Routes:
  GET /ws       replication channel
  GET /healthz  liveness
  GET /metrics  prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			settings := ws.DefaultHubSettings()
			settings.ReplayLast = !noReplay
			if sendBuffer > 0 {
				settings.SendBufferSize = sendBuffer
			}
			return runHub(cfg.Listen, settings)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from livetree.json, else :8080)")
	cmd.Flags().BoolVar(&noReplay, "no-replay", false, "Do not send the last snapshot to new connections")
	cmd.Flags().IntVar(&sendBuffer, "send-buffer", 0, "Messages queued per connection before it is dropped")
	return cmd
}

func runHub(listen string, settings *ws.HubSettings) error {
	hub := ws.NewHub(settings)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livetree",
			Subsystem: "hub",
			Name:      "connections",
			Help:      "Connected instances.",
		}, func() float64 { return float64(hub.Connections()) }),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", hub.Routes())
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		glog.Infof("[hub]listening on %s\n", listen)
		fmt.Printf("hub listening on %s\n", listen)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		hub.Close()
		return err
	case <-ctx.Done():
	}
	fmt.Println("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
