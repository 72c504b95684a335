package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rmohub/internal/config"
	"rmohub/internal/geo"
	"rmohub/internal/ingest"
	"rmohub/internal/model"
	"rmohub/internal/render"
	"rmohub/internal/report"
	"rmohub/internal/server"
	"rmohub/internal/stats"
	"rmohub/internal/store"
)

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(lc config.LogConfig) {
	if lc.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// hubBroadcaster narrows the websocket hub to condition updates for the
// ingest feed.
type hubBroadcaster struct {
	hub *server.Hub
}

func (b hubBroadcaster) Broadcast(update model.ConditionUpdate) {
	b.hub.Broadcast(update)
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	network, err := geo.LoadNetwork(cfg.NetworkPath)
	if err != nil {
		return err
	}

	statsSvc := stats.New(st)
	renderers := render.NewService()
	laRenderers := render.NewAuthorityService(st)
	reports := report.NewBuilder(st, statsSvc, cfg.Report.Theme)
	hub := server.NewHub()

	srv := server.New(cfg, network, st, statsSvc, renderers, laRenderers, reports, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.WatchNetwork {
		g.Go(func() error { return network.Watch(ctx) })
	}

	if cfg.MQTT.Enabled {
		invalidate := func() {
			statsSvc.Invalidate()
			laRenderers.Invalidate()
			reports.Invalidate()
		}
		feed := ingest.New(cfg.MQTT, st, network, invalidate, hubBroadcaster{hub}, cfg.Report.Theme)
		g.Go(func() error { return feed.Start(ctx) })
	}

	return g.Wait()
}

func runLoad(configPath, networkPath, surveysPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if networkPath == "" {
		networkPath = cfg.NetworkPath
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	network, err := geo.LoadNetwork(networkPath)
	if err != nil {
		return err
	}
	segments := network.Segments()
	if err := st.UpsertSegments(ctx, segments); err != nil {
		return err
	}
	log.WithField("segments", len(segments)).Info("network imported")

	if surveysPath != "" {
		f, err := os.Open(surveysPath)
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := st.ImportSurveysCSV(ctx, f)
		if err != nil {
			return fmt.Errorf("importing surveys from %s: %w", surveysPath, err)
		}
		log.WithField("readings", n).Info("survey readings imported")
	}
	return nil
}

func runReport(configPath, outDir string, year int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = cfg.Report.OutputDir
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	builder := report.NewBuilder(st, stats.New(st), cfg.Report.Theme)
	rep, err := builder.Write(context.Background(), outDir, year)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"dir": outDir, "year": rep.Year}).Info("regional report written")
	return nil
}
