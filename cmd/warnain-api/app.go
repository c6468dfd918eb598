package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/warnain/backend/internal/config"
	"github.com/warnain/backend/internal/database"
	"github.com/warnain/backend/internal/logging"
	"github.com/warnain/backend/internal/netif"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/settings"
	"github.com/warnain/backend/internal/spooler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const uploadDirName = "warnain-uploads"

// app holds the pieces every command needs.
type app struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func newApp(cfg config.AppConfig) (*app, error) {
	logger, err := logging.NewLoggerWithFile(cfg.LogLevel, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		DSN:    cfg.DatabaseDSN,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &app{config: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

// printingStack wires the spooler client, dispatcher, interface source and syncer.
type printingStack struct {
	dispatcher *printing.Dispatcher
	network    netif.Source
	syncer     *settings.Syncer
}

func (a *app) newPrintingStack(observer settings.SyncObserver) (*printingStack, error) {
	client, err := spooler.NewClient(spooler.Config{
		Server:   a.config.CupsServer,
		User:     a.config.CupsUser,
		Password: a.config.CupsPassword,
		UseTLS:   a.config.CupsTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("spooler client: %w", err)
	}
	dispatcher, err := printing.NewDispatcher(client, a.logger.Named("dispatcher"))
	if err != nil {
		return nil, err
	}
	network, err := netif.NewSource(a.config.NetworkSource)
	if err != nil {
		return nil, fmt.Errorf("network source: %w", err)
	}
	syncer, err := settings.NewSyncer(settings.SyncerConfig{
		Database:   a.db,
		Printers:   dispatcher,
		Interfaces: network,
		Logger:     a.logger.Named("sync"),
		Observer:   observer,
	})
	if err != nil {
		return nil, err
	}
	return &printingStack{dispatcher: dispatcher, network: network, syncer: syncer}, nil
}

func (a *app) uploadDir() string {
	if a.config.UploadDir != "" {
		return a.config.UploadDir
	}
	return filepath.Join(os.TempDir(), uploadDirName)
}

