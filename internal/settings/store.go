package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/warnain/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opStoreNew        = "settings.store.new"
	opListPrinters    = "settings.list_printers"
	opGetPrinter      = "settings.get_printer"
	opCreatePrinter   = "settings.create_printer"
	opUpdatePrinter   = "settings.update_printer"
	opDeletePrinter   = "settings.delete_printer"
	opListInterfaces  = "settings.list_interfaces"
	opGetInterface    = "settings.get_interface"
	opCreateInterface = "settings.create_interface"
	opUpdateInterface = "settings.update_interface"
	opDeleteInterface = "settings.delete_interface"
	opEnsureDefault   = "settings.ensure_default"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig describes the dependencies of the settings store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store persists printer and interface rows. Every write that sets a row as
// default clears the other defaults in the same transaction.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opStoreNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, logger: logger}, nil
}

// ListPrinters returns every printer row ordered by name.
func (s *Store) ListPrinters(ctx context.Context) ([]PrinterSettings, error) {
	var rows []PrinterSettings
	if err := s.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		s.logError(opListPrinters, "select_failed", err)
		return nil, serviceerror.New(opListPrinters, "select_failed", err)
	}
	return rows, nil
}

// GetPrinter loads a printer row by id.
func (s *Store) GetPrinter(ctx context.Context, id uint) (PrinterSettings, error) {
	var row PrinterSettings
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PrinterSettings{}, serviceerror.NotFound(opGetPrinter, "printer_not_found", "printer settings %d", id)
	}
	if err != nil {
		s.logError(opGetPrinter, "select_failed", err, zap.Uint("printer_id", id))
		return PrinterSettings{}, serviceerror.New(opGetPrinter, "select_failed", err)
	}
	return row, nil
}

// CreatePrinter inserts a printer row.
func (s *Store) CreatePrinter(ctx context.Context, row PrinterSettings) (PrinterSettings, error) {
	row.ID = 0
	row.Name = strings.TrimSpace(row.Name)
	if row.Name == "" {
		return PrinterSettings{}, serviceerror.Invalid(opCreatePrinter, "missing_name", "printer name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, &PrinterSettings{}, row.Name, 0, opCreatePrinter); err != nil {
			return err
		}
		return saveExclusiveDefault(tx, &PrinterSettings{}, &row, row.ID, row.IsDefault)
	})
	if err != nil {
		return PrinterSettings{}, s.wrapWriteError(opCreatePrinter, err, zap.String("printer", row.Name))
	}
	return row, nil
}

// UpdatePrinter applies patch to the printer row with the given id.
func (s *Store) UpdatePrinter(ctx context.Context, id uint, patch PrinterPatch) (PrinterSettings, error) {
	var row PrinterSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return serviceerror.NotFound(opUpdatePrinter, "printer_not_found", "printer settings %d", id)
			}
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return serviceerror.Invalid(opUpdatePrinter, "missing_name", "printer name is required")
			}
			if err := ensureNameFree(tx, &PrinterSettings{}, name, row.ID, opUpdatePrinter); err != nil {
				return err
			}
			row.Name = name
		}
		if patch.IsActive != nil {
			row.IsActive = *patch.IsActive
		}
		if patch.IsDefault != nil {
			row.IsDefault = *patch.IsDefault
		}
		if patch.Description != nil {
			row.Description = *patch.Description
		}
		return saveExclusiveDefault(tx, &PrinterSettings{}, &row, row.ID, row.IsDefault)
	})
	if err != nil {
		return PrinterSettings{}, s.wrapWriteError(opUpdatePrinter, err, zap.Uint("printer_id", id))
	}
	return row, nil
}

// DeletePrinter removes the printer row with the given id.
func (s *Store) DeletePrinter(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&PrinterSettings{}, id)
	if result.Error != nil {
		s.logError(opDeletePrinter, "delete_failed", result.Error, zap.Uint("printer_id", id))
		return serviceerror.New(opDeletePrinter, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return serviceerror.NotFound(opDeletePrinter, "printer_not_found", "printer settings %d", id)
	}
	return nil
}

// ListInterfaces returns every interface row ordered by name.
func (s *Store) ListInterfaces(ctx context.Context) ([]NetworkInterface, error) {
	var rows []NetworkInterface
	if err := s.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		s.logError(opListInterfaces, "select_failed", err)
		return nil, serviceerror.New(opListInterfaces, "select_failed", err)
	}
	return rows, nil
}

// GetInterface loads an interface row by id.
func (s *Store) GetInterface(ctx context.Context, id uint) (NetworkInterface, error) {
	var row NetworkInterface
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NetworkInterface{}, serviceerror.NotFound(opGetInterface, "interface_not_found", "network interface %d", id)
	}
	if err != nil {
		s.logError(opGetInterface, "select_failed", err, zap.Uint("interface_id", id))
		return NetworkInterface{}, serviceerror.New(opGetInterface, "select_failed", err)
	}
	return row, nil
}

// CreateInterface inserts an interface row.
func (s *Store) CreateInterface(ctx context.Context, row NetworkInterface) (NetworkInterface, error) {
	row.ID = 0
	row.Name = strings.TrimSpace(row.Name)
	if row.Name == "" {
		return NetworkInterface{}, serviceerror.Invalid(opCreateInterface, "missing_name", "interface name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, &NetworkInterface{}, row.Name, 0, opCreateInterface); err != nil {
			return err
		}
		return saveExclusiveDefault(tx, &NetworkInterface{}, &row, row.ID, row.IsDefault)
	})
	if err != nil {
		return NetworkInterface{}, s.wrapWriteError(opCreateInterface, err, zap.String("interface", row.Name))
	}
	return row, nil
}

// UpdateInterface applies patch to the interface row with the given id.
func (s *Store) UpdateInterface(ctx context.Context, id uint, patch InterfacePatch) (NetworkInterface, error) {
	var row NetworkInterface
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return serviceerror.NotFound(opUpdateInterface, "interface_not_found", "network interface %d", id)
			}
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return serviceerror.Invalid(opUpdateInterface, "missing_name", "interface name is required")
			}
			if err := ensureNameFree(tx, &NetworkInterface{}, name, row.ID, opUpdateInterface); err != nil {
				return err
			}
			row.Name = name
		}
		if patch.ClearIP {
			row.IPAddress = nil
		} else if patch.IPAddress != nil {
			ip := *patch.IPAddress
			row.IPAddress = &ip
		}
		if patch.IsActive != nil {
			row.IsActive = *patch.IsActive
		}
		if patch.IsDefault != nil {
			row.IsDefault = *patch.IsDefault
		}
		if patch.Description != nil {
			row.Description = *patch.Description
		}
		return saveExclusiveDefault(tx, &NetworkInterface{}, &row, row.ID, row.IsDefault)
	})
	if err != nil {
		return NetworkInterface{}, s.wrapWriteError(opUpdateInterface, err, zap.Uint("interface_id", id))
	}
	return row, nil
}

// DeleteInterface removes the interface row with the given id.
func (s *Store) DeleteInterface(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&NetworkInterface{}, id)
	if result.Error != nil {
		s.logError(opDeleteInterface, "delete_failed", result.Error, zap.Uint("interface_id", id))
		return serviceerror.New(opDeleteInterface, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return serviceerror.NotFound(opDeleteInterface, "interface_not_found", "network interface %d", id)
	}
	return nil
}

// EnsureOutcome reports what EnsureDefaultPrinter or EnsureDefaultInterface did.
type EnsureOutcome string

const (
	EnsureCreated  EnsureOutcome = "created"
	EnsureUpdated  EnsureOutcome = "updated"
	EnsureExisting EnsureOutcome = "existing"
)

// EnsureDefaultPrinter creates name as the active default printer when absent.
// An existing row is only promoted to active default when force is set.
func (s *Store) EnsureDefaultPrinter(ctx context.Context, name string, force bool) (EnsureOutcome, error) {
	var outcome EnsureOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PrinterSettings
		err := tx.Where("name = ?", name).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = PrinterSettings{Name: name, IsActive: true, IsDefault: true, Description: "Default printer from settings"}
			outcome = EnsureCreated
		case err != nil:
			return err
		case force:
			row.IsActive = true
			row.IsDefault = true
			outcome = EnsureUpdated
		default:
			outcome = EnsureExisting
			return nil
		}
		return saveExclusiveDefault(tx, &PrinterSettings{}, &row, row.ID, true)
	})
	if err != nil {
		return "", s.wrapWriteError(opEnsureDefault, err, zap.String("printer", name))
	}
	return outcome, nil
}

// EnsureDefaultInterface mirrors EnsureDefaultPrinter for network interfaces.
func (s *Store) EnsureDefaultInterface(ctx context.Context, name string, force bool) (EnsureOutcome, error) {
	var outcome EnsureOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row NetworkInterface
		err := tx.Where("name = ?", name).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = NetworkInterface{Name: name, IsActive: true, IsDefault: true, Description: "Default interface from settings"}
			outcome = EnsureCreated
		case err != nil:
			return err
		case force:
			row.IsActive = true
			row.IsDefault = true
			outcome = EnsureUpdated
		default:
			outcome = EnsureExisting
			return nil
		}
		return saveExclusiveDefault(tx, &NetworkInterface{}, &row, row.ID, true)
	})
	if err != nil {
		return "", s.wrapWriteError(opEnsureDefault, err, zap.String("interface", name))
	}
	return outcome, nil
}

// saveExclusiveDefault clears is_default on every other row of model's table
// when isDefault is set, then saves row.
func saveExclusiveDefault(tx *gorm.DB, model any, row any, id uint, isDefault bool) error {
	if isDefault {
		query := tx.Model(model).Where("is_default = ?", true)
		if id != 0 {
			query = query.Where("id <> ?", id)
		}
		if err := query.Update("is_default", false).Error; err != nil {
			return err
		}
	}
	return tx.Save(row).Error
}

func ensureNameFree(tx *gorm.DB, model any, name string, id uint, operation string) error {
	var count int64
	query := tx.Model(model).Where("name = ?", name)
	if id != 0 {
		query = query.Where("id <> ?", id)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return serviceerror.Conflict(operation, "duplicate_name", "%s already exists", name)
	}
	return nil
}

func (s *Store) wrapWriteError(operation string, err error, fields ...zap.Field) error {
	var serviceErr *serviceerror.ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}
	s.logError(operation, "write_failed", err, fields...)
	return serviceerror.New(operation, "write_failed", err)
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("settings store error", attrs...)
}
