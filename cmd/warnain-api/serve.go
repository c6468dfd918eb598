package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warnain/backend/internal/auth"
	"github.com/warnain/backend/internal/catalog"
	"github.com/warnain/backend/internal/config"
	"github.com/warnain/backend/internal/metrics"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/server"
	"github.com/warnain/backend/internal/settings"
	"github.com/warnain/backend/internal/users"
	"go.uber.org/zap"
)

const (
	tokenIssuer     = "warnain-auth"
	tokenAudience   = "warnain-api"
	shutdownTimeout = 10 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	application, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer application.Close()
	logger := application.logger
	db := application.db

	collector := metrics.NewCollector()
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        tokenIssuer,
		Audience:      tokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger.Named("catalog"),
		Observer: collector,
	})
	if err != nil {
		return err
	}

	store, err := settings.NewStore(settings.StoreConfig{Database: db, Logger: logger.Named("settings")})
	if err != nil {
		return err
	}
	resolver, err := settings.NewResolver(settings.ResolverConfig{
		Database:          db,
		FallbackPrinter:   appConfig.PrinterName,
		FallbackInterface: appConfig.NetworkInterface,
		Logger:            logger.Named("resolver"),
	})
	if err != nil {
		return err
	}

	stack, err := application.newPrintingStack(collector)
	if err != nil {
		return err
	}

	realtime := server.NewRealtimeDispatcher()
	tracker, err := printing.NewTracker(printing.TrackerConfig{
		Database:   db,
		Dispatcher: stack.dispatcher,
		Resolver:   resolver,
		UploadDir:  application.uploadDir(),
		Clock:      time.Now,
		Logger:     logger.Named("tracker"),
		Notifier:   realtime,
		Observer:   collector,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:   tokenManager,
		Users:          userService,
		Catalog:        catalogService,
		Settings:       store,
		Resolver:       resolver,
		Syncer:         stack.syncer,
		Printers:       stack.dispatcher,
		Network:        stack.network,
		Tracker:        tracker,
		Realtime:       realtime,
		Metrics:        metrics.Handler(registry),
		MediaRoot:      appConfig.MediaRoot,
		MediaURL:       appConfig.MediaURL,
		UploadMaxBytes: appConfig.UploadMaxBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
