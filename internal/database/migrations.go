package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/warnain/backend/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillCategorySource = "2026-09-01_backfill_category_source"
	migrationSinglePrinterDefault   = "2026-09-14_single_default_printer"
	migrationSingleInterfaceDefault = "2026-09-14_single_default_interface"
	singleDefaultPrinterIndexName   = "idx_printer_settings_single_default"
	singleDefaultInterfaceIndexName = "idx_network_interfaces_single_default"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillCategorySource, apply: backfillCategorySource},
		{name: migrationSinglePrinterDefault, apply: singleDefault("printer_settings", singleDefaultPrinterIndexName)},
		{name: migrationSingleInterfaceDefault, apply: singleDefault("network_interfaces", singleDefaultInterfaceIndexName)},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func backfillCategorySource(db *gorm.DB) error {
	return db.Model(&catalog.Category{}).
		Where("source IS NULL OR source = ''").
		Update("source", catalog.DefaultSource).Error
}

// singleDefault keeps the newest default row and backs the one-default rule
// with a partial unique index.
func singleDefault(table, index string) func(*gorm.DB) error {
	return func(db *gorm.DB) error {
		demote := fmt.Sprintf(
			"UPDATE %s SET is_default = ? WHERE is_default = ? AND id <> (SELECT MAX(id) FROM %s WHERE is_default = ?)",
			table, table)
		if err := db.Exec(demote, false, true, true).Error; err != nil {
			return err
		}
		create := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (is_default) WHERE is_default", index, table)
		return db.Exec(create).Error
	}
}
