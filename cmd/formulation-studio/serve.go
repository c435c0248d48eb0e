package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joelkehle/formulation-studio/internal/config"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/studio"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	metrics := telemetry.NewMetrics()
	meter, err := telemetry.NewMeter(metrics, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, closeGen, err := newGenerator(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer closeGen()

	svc := studio.NewService(st, gen, newDeriver(cfg), studio.ServiceOptions{
		MaxConcurrent: int64(cfg.Server.MaxConcurrent),
		Assess:        cfg.Generation.Assess,
		Timeout:       cfg.Generation.Timeout * 2,
	}, log, metrics)

	opts := []studio.ServerOption{studio.WithMetrics(metrics, meter), studio.WithLogger(log)}
	layout, _ := report.LayoutFor(cfg.Server.PDFPaper)
	if pdf := report.NewChromiumPDFRenderer(cfg.Server.ChromePath, report.WithPageLayout(layout)); pdf.Available() {
		opts = append(opts, studio.WithPDFRenderer(pdf))
	} else {
		log.Warn("chromium not found, PDF reports disabled", nil)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      studio.NewServer(svc, opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("formulation studio listening", map[string]interface{}{
			"addr":    cfg.Server.Addr,
			"backend": cfg.Generation.Backend,
			"store":   cfg.Store.Path,
			"cache":   cfg.Cache.Enabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown", nil)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("generation drain", nil)
	}
	if err := meter.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("meter shutdown", nil)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracing shutdown", nil)
	}
	return nil
}
