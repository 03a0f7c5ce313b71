package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/metrics"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/worker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		envFiles    []string
		metricsAddr string
	)

	root := &cobra.Command{
		Use:   "finanzas-worker",
		Short: "Consume domain events and append them to the activity log",
		Long: `finanzas-worker consumes the events published by finanzas serve and
appends one activity row per event to Google Sheets, or to the structured log
when GOOGLE_SPREADSHEET_ID is not set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile(envFiles...)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, metricsAddr)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load environment from these files (default .env)")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "Address for /metrics and /healthz (empty disables)")

	root.AddCommand(authorizeCmd())
	return root
}

func activityWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ActivityWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("GOOGLE_SPREADSHEET_ID not set; activity is written to the log")
		return sheets.NewLogWriter(logger), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("google sheets: %w", err)
	}
	logger.Info("Google Sheets activity log enabled",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", client.SheetName())
	return client, nil
}

func runWorker(parent context.Context, cfg *config.Config, metricsAddr string) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := cli.SetupLogger(cfg, os.Stdout)
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required to run the worker")
	}
	ctx, stop := cli.SignalContext(parent, logger)
	defer stop()

	writer, err := activityWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(log.ComponentAMQP).Slog())
	if err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	defer client.Close()

	m := metrics.New()
	proc := worker.NewProcessor(client, worker.NewActivityWorker(writer, logger), worker.ProcessorConfig{
		HandleTimeout: cfg.WorkerHandleTimeout,
		Observe:       m.ObserveHandled,
	}, logger)

	var msrv *http.Server
	if metricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", m.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			if !proc.IsRunning() {
				http.Error(w, "processor stopped", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok\n"))
		})
		msrv = &http.Server{Addr: metricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	}

	if err := proc.Start(ctx); err != nil {
		return err
	}
	logger.Info("Starting finanzas-worker", "queue", cfg.AMQPQueue, "metrics_addr", metricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	if msrv != nil {
		g.Go(func() error {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-proc.Done():
			// Consumption ended on its own; report why.
			if err := proc.Err(); err != nil {
				return err
			}
			return errors.New("event consumption stopped")
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.Shutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) error {
			err := proc.Stop(ctx)
			if msrv != nil {
				err = errors.Join(err, msrv.Shutdown(ctx))
			}
			return err
		})
	})
	return g.Wait()
}
