package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/warnain/backend/internal/netif"
	"github.com/warnain/backend/internal/spooler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SyncKindPrinters   = "printers"
	SyncKindInterfaces = "interfaces"
)

// PrinterLister lists the printers the spooler knows.
type PrinterLister interface {
	ListPrinters(ctx context.Context) ([]spooler.Printer, error)
}

// InterfaceLister lists the host's network interfaces.
type InterfaceLister interface {
	Interfaces(ctx context.Context) ([]netif.Interface, error)
}

// SyncObserver is told the outcome of every sync run.
type SyncObserver interface {
	SyncCompleted(kind string, ok bool)
}

// SyncerConfig describes the dependencies of a Syncer.
type SyncerConfig struct {
	Database   *gorm.DB
	Printers   PrinterLister
	Interfaces InterfaceLister
	Logger     *zap.Logger
	Observer   SyncObserver
}

// Syncer upserts live printers and interfaces into their tables by name.
// Default flags are never modified by a sync.
type Syncer struct {
	db         *gorm.DB
	printers   PrinterLister
	interfaces InterfaceLister
	logger     *zap.Logger
	observer   SyncObserver
}

// NewSyncer constructs a Syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Printers == nil || cfg.Interfaces == nil {
		return nil, errors.New("settings: printer and interface listers are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Syncer{
		db:         cfg.Database,
		printers:   cfg.Printers,
		interfaces: cfg.Interfaces,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// SyncPrinters creates missing printer rows and refreshes descriptions.
// Failures are logged and reported as false.
func (s *Syncer) SyncPrinters(ctx context.Context) bool {
	err := s.syncPrinters(ctx)
	return s.finish(SyncKindPrinters, err)
}

// SyncInterfaces creates missing interface rows and refreshes address and
// active flag. Failures are logged and reported as false.
func (s *Syncer) SyncInterfaces(ctx context.Context) bool {
	err := s.syncInterfaces(ctx)
	return s.finish(SyncKindInterfaces, err)
}

func (s *Syncer) syncPrinters(ctx context.Context) (err error) {
	defer recoverInto(&err)

	live, err := s.printers.ListPrinters(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, printer := range live {
			var row PrinterSettings
			err := tx.Where("name = ?", printer.Name).Take(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = PrinterSettings{Name: printer.Name, Description: printer.Description, IsActive: true}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if row.Description != printer.Description {
				if err := tx.Model(&row).Update("description", printer.Description).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Syncer) syncInterfaces(ctx context.Context) (err error) {
	defer recoverInto(&err)

	live, err := s.interfaces.Interfaces(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, iface := range live {
			var ip *string
			if iface.IPv4 != "" {
				value := iface.IPv4
				ip = &value
			}
			var row NetworkInterface
			err := tx.Where("name = ?", iface.Name).Take(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = NetworkInterface{Name: iface.Name, IPAddress: ip, IsActive: iface.Up}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			updates := map[string]any{"ip_address": ip, "is_active": iface.Up}
			if err := tx.Model(&row).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Syncer) finish(kind string, err error) bool {
	ok := err == nil
	if !ok {
		s.logger.Error("settings sync failed",
			zap.String("operation", "settings.sync_"+kind),
			zap.Error(err))
	}
	if s.observer != nil {
		s.observer.SyncCompleted(kind, ok)
	}
	return ok
}

func recoverInto(err *error) {
	if recovered := recover(); recovered != nil {
		*err = fmt.Errorf("panic: %v", recovered)
	}
}
