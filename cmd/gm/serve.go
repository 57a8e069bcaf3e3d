package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/condmatlab/gateman/internal/archive"
	"github.com/condmatlab/gateman/internal/config"
	"github.com/condmatlab/gateman/internal/cq"
	"github.com/condmatlab/gateman/internal/events"
	"github.com/condmatlab/gateman/internal/gate"
	"github.com/condmatlab/gateman/internal/instrument"
	"github.com/condmatlab/gateman/internal/instrument/nanonis"
	"github.com/condmatlab/gateman/internal/server"
	"github.com/condmatlab/gateman/internal/store"
	"github.com/condmatlab/gateman/internal/store/postgres"
	"github.com/condmatlab/gateman/internal/sweep"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the gateman HTTP server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration and the device layout.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dev, err := config.LoadDevice(cfg.DeviceFile)
		if err != nil {
			return err
		}

		// Connect to the instrument.
		inst, err := connectInstrument(dev)
		if err != nil {
			return err
		}
		logger.Info("instrument connected",
			"driver", dev.Instrument.Driver,
			"address", dev.Instrument.Address,
		)

		// Build gates and sweep groups from the device layout.
		var gates []*gate.Gate
		var outputs, inputs []*gate.Gate
		for _, meta := range dev.ModelGates() {
			g := gate.New(meta, inst)
			gates = append(gates, g)
			if meta.Writable() {
				outputs = append(outputs, g)
			} else {
				inputs = append(inputs, g)
			}
		}

		sweeper := &sweep.Sweeper{
			Outputs:       gate.NewGroup(outputs...),
			Inputs:        gate.NewGroup(inputs...),
			Amplification: dev.Amplification,
			Device:        dev.Device,
			Temperature:   dev.Temperature,
			Dir:           cfg.WorkDir,
			Logger:        logger,
		}
		if cfg.CQToken != "" {
			sweeper.CQ = cq.NewClient(cfg.CQURL, cfg.CQToken)
			logger.Info("analysis enabled")
		}

		// Connect to Postgres if configured; without it runs are not recorded.
		var st store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				inst.Close()
				return err
			}
			st = pg
			logger.Info("run history enabled")
		} else {
			logger.Info("run history disabled (GATEMAN_DATABASE_URL not set)")
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				closeStore(st, logger)
				inst.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (GATEMAN_NATS_URL not set)")
		}

		// Start the HTTP server.
		gm := server.NewGatemanServer(gates, sweeper, st, publisher)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: gm.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the archive scheduler if run history is on.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && st != nil {
			dests := []archive.Destination{
				archive.NewFileDestination(filepath.Join(cfg.WorkDir, "archive.jsonl")),
			}

			if cfg.ArchiveS3Bucket != "" {
				key := cfg.ArchiveS3Prefix + ".jsonl"
				s3Dest, err := archive.NewS3Destination(
					context.Background(),
					cfg.ArchiveS3Bucket,
					key,
					cfg.ArchiveS3Region,
					cfg.ArchiveS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 archive destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", key)
				}
			}

			scheduler = archive.NewScheduler(st, dests, cfg.ArchiveInterval, logger)
			scheduler.Start()
			logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
		}

		// Log startup info.
		logger.Info("gateman server started",
			"device", dev.Device,
			"gates", len(gates),
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		closeStore(st, logger)
		if err := inst.Close(); err != nil {
			logger.Error("error closing instrument", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// connectInstrument opens the driver named in the device layout. The sim
// driver loops every output back to its gate's read signal, so voltages read
// back and sweeps run end to end without hardware.
func connectInstrument(dev *config.Device) (instrument.Instrument, error) {
	switch dev.Instrument.Driver {
	case "nanonis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := nanonis.Dial(ctx, dev.Instrument.Address)
		if err != nil {
			return nil, fmt.Errorf("connecting to nanonis at %s: %w", dev.Instrument.Address, err)
		}
		return client, nil
	case "sim":
		sim := instrument.NewSim(0)
		for _, g := range dev.Gates {
			if g.WriteIndex != nil {
				sim.Wire(*g.WriteIndex, g.ReadIndex)
			}
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown instrument driver %q", dev.Instrument.Driver)
	}
}

func closeStore(st store.Store, logger *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}
}
