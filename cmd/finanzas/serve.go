package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/amqp"
	"finanzas/internal/auth"
	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	apphttp "finanzas/internal/http"
	"finanzas/internal/i18n"
	"finanzas/internal/log"
	"finanzas/internal/metrics"
	"finanzas/internal/services"
	"finanzas/internal/storage"
	"finanzas/internal/views"
	"finanzas/web"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Configuration is read from the environment
(see .env.example). SIGINT or SIGTERM trigger a graceful shutdown bounded by
SHUTDOWN_TIMEOUT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", true, "Apply pending migrations before serving (sqlite and postgres)")
	return cmd
}

// observedPublisher counts every publish attempt.
type observedPublisher struct {
	next    services.Publisher
	metrics *metrics.Metrics
}

func (p observedPublisher) Publish(ctx context.Context, ev *amqp.Event) error {
	err := p.next.Publish(ctx, ev)
	p.metrics.ObservePublish(string(ev.Type), err)
	return err
}

func runServe(parent context.Context, cfg *config.Config, migrateFirst bool) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := cli.SetupLogger(cfg, os.Stdout)
	ctx, stop := cli.SignalContext(parent, logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if migrateFirst && bcfg.Type.Persistent() {
		dialect, dsn, err := bcfg.Migration()
		if err != nil {
			return err
		}
		if err := storage.RunMigrations(dialect, dsn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()
	store := result.Store

	site, err := views.LoadSite(web.RoutesFS, web.RoutesFile, web.TemplatesFS, "templates")
	if err != nil {
		return err
	}
	routeLog := logger.WithComponent(log.ComponentRoutes)
	for _, w := range site.Table.Warnings() {
		routeLog.Warn("Route table warning", "code", w.Code, "route", w.Route.DisplayName(), "detail", w.Message)
	}

	bundle, err := i18n.New()
	if err != nil {
		return err
	}
	if cfg.TokenSecretHex == "" {
		logger.Warn("TOKEN_SECRET_HEX not set; sessions end when the process restarts")
	}
	tokens, err := auth.NewTokens(cfg.TokenSecretHex, cfg.TokenTTL)
	if err != nil {
		return err
	}
	m := metrics.New()

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(log.ComponentAMQP).Slog())
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer client.Close()
		publisher = observedPublisher{next: client, metrics: m}
	} else {
		logger.Info("AMQP_URL not set; domain events are not published")
	}

	accountOpts := []services.AccountOption{services.WithBcryptCost(cfg.BcryptCost)}
	if publisher != nil {
		accountOpts = append(accountOpts, services.WithPublisher(publisher))
	}
	if cfg.GoogleClientID != "" {
		verifier, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return fmt.Errorf("google sign-in: %w", err)
		}
		accountOpts = append(accountOpts, services.WithGoogle(verifier))
	}
	accounts := services.NewAccountService(store, tokens, logger, accountOpts...)
	categories := services.NewCategoryService(store, publisher, logger)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	caches.Register("categories", categories.Cache())
	caches.StartCleanup(cfg.CacheCleanup)
	defer caches.Stop()
	m.RegisterCache("categories", categories.Cache())

	srv, err := apphttp.NewServer(apphttp.Options{
		Config:     cfg,
		Site:       site,
		Accounts:   accounts,
		Categories: categories,
		Auth:       auth.NewAuthenticator(tokens, store),
		I18n:       bundle,
		Metrics:    m,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finanzas server",
			"addr", srv.Addr,
			"backend", bcfg.Type,
			"routes", len(site.Table.Routes()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.Shutdown(logger, cfg.ShutdownTimeout, srv.Shutdown)
	})
	return g.Wait()
}
