package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/warnain/backend/internal/database"
	"github.com/warnain/backend/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSyncer struct {
	printersOK   bool
	interfacesOK bool
}

func (s stubSyncer) SyncPrinters(context.Context) bool   { return s.printersOK }
func (s stubSyncer) SyncInterfaces(context.Context) bool { return s.interfacesOK }

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store, err := settings.NewStore(settings.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestInitSettingsCreatesConfiguredDefaults(t *testing.T) {
	store := newTestStore(t)
	deps := initSettingsDeps{
		syncer:           stubSyncer{printersOK: true},
		store:            store,
		printerName:      "Canon_G2010",
		networkInterface: "wlan0",
	}

	var out bytes.Buffer
	if err := initSettings(t.Context(), &out, deps, false, false); err != nil {
		t.Fatalf("init settings failed: %v", err)
	}
	output := out.String()
	for _, want := range []string{
		"Printers synced",
		"Failed to sync network interfaces",
		"Default printer Canon_G2010: created",
		"Default interface wlan0: created",
		"Canon_G2010 [default]",
		"wlan0 (no address) [default]",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestInitSettingsForcePromotesExistingRow(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreatePrinter(t.Context(), settings.PrinterSettings{Name: "Canon_G2010"}); err != nil {
		t.Fatalf("failed to seed printer: %v", err)
	}
	deps := initSettingsDeps{syncer: stubSyncer{true, true}, store: store, printerName: "Canon_G2010"}

	var out bytes.Buffer
	if err := initSettings(t.Context(), &out, deps, false, false); err != nil {
		t.Fatalf("init settings failed: %v", err)
	}
	if !strings.Contains(out.String(), "Default printer Canon_G2010: existing") {
		t.Fatalf("expected existing row untouched:\n%s", out.String())
	}

	out.Reset()
	if err := initSettings(t.Context(), &out, deps, false, true); err != nil {
		t.Fatalf("forced init settings failed: %v", err)
	}
	if !strings.Contains(out.String(), "Default printer Canon_G2010: updated") {
		t.Fatalf("expected forced promotion:\n%s", out.String())
	}
	printers, err := store.ListPrinters(t.Context())
	if err != nil {
		t.Fatalf("failed to list printers: %v", err)
	}
	if len(printers) != 1 || !printers[0].IsDefault || !printers[0].IsActive {
		t.Fatalf("expected promoted default printer, got %+v", printers)
	}
}

func TestInitSettingsSyncOnlySkipsDefaults(t *testing.T) {
	store := newTestStore(t)
	deps := initSettingsDeps{syncer: stubSyncer{true, true}, store: store, printerName: "Canon_G2010"}

	var out bytes.Buffer
	if err := initSettings(t.Context(), &out, deps, true, false); err != nil {
		t.Fatalf("init settings failed: %v", err)
	}
	if strings.Contains(out.String(), "Default printer") || !strings.Contains(out.String(), "Printers (0)") {
		t.Fatalf("expected no defaults in sync-only mode:\n%s", out.String())
	}
}
