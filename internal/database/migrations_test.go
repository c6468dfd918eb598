package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/warnain/backend/internal/catalog"
	"github.com/warnain/backend/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(Models()...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func TestApplyMigrationsBackfillsCategorySource(testContext *testing.T) {
	database := openTestDatabase(testContext)

	category := catalog.Category{Title: "Dinosaurs", Thumbnail: "categories/dino.png"}
	if err := database.Create(&category).Error; err != nil {
		testContext.Fatalf("failed to insert category: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored catalog.Category
	if err := database.Take(&stored, category.ID).Error; err != nil {
		testContext.Fatalf("failed to reload category: %v", err)
	}
	if stored.Source != catalog.DefaultSource {
		testContext.Fatalf("expected default source, got %q", stored.Source)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillCategorySource).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsEnforcesSingleDefaultPrinter(testContext *testing.T) {
	database := openTestDatabase(testContext)

	rows := []settings.PrinterSettings{
		{Name: "Office", IsActive: true, IsDefault: true},
		{Name: "Hall", IsActive: true, IsDefault: true},
	}
	if err := database.Create(&rows).Error; err != nil {
		testContext.Fatalf("failed to insert printers: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var defaults []settings.PrinterSettings
	if err := database.Where("is_default = ?", true).Find(&defaults).Error; err != nil {
		testContext.Fatalf("failed to load defaults: %v", err)
	}
	if len(defaults) != 1 || defaults[0].Name != "Hall" {
		testContext.Fatalf("expected newest default to survive, got %+v", defaults)
	}

	err := database.Model(&settings.PrinterSettings{}).Where("name = ?", "Office").Update("is_default", true).Error
	if err == nil {
		testContext.Fatalf("expected unique index to reject a second default")
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	database := openTestDatabase(testContext)

	for attempt := 0; attempt < 2; attempt++ {
		if err := applyMigrations(database, zap.NewNop()); err != nil {
			testContext.Fatalf("attempt %d failed: %v", attempt, err)
		}
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count records: %v", err)
	}
	if count != 3 {
		testContext.Fatalf("expected 3 migration records, got %d", count)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "mysql"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: DriverPostgres}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}

func TestOpenSQLiteMigratesSchema(testContext *testing.T) {
	database, err := Open(Options{Driver: DriverSQLite, Path: filepath.Join(testContext.TempDir(), "app.db")}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	for _, table := range []string{"users", "categories", "printable_images", "category_accesses", "printer_settings", "network_interfaces", "print_jobs", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s", table)
		}
	}
}
