package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/warnain/backend/internal/auth"
	"github.com/warnain/backend/internal/catalog"
	"github.com/warnain/backend/internal/database"
	"github.com/warnain/backend/internal/netif"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/settings"
	"github.com/warnain/backend/internal/spooler"
	"github.com/warnain/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakePrinters struct {
	printers []spooler.Printer
	err      error
}

func (f *fakePrinters) ListPrinters(context.Context) ([]spooler.Printer, error) {
	return f.printers, f.err
}

func (f *fakePrinters) PrinterStatus(_ context.Context, name string) printing.PrinterStatus {
	for _, printer := range f.printers {
		if printer.Name == name {
			return printing.PrinterStatus{Exists: true, Active: printer.Accepting, State: printer.StateName(), Message: printer.StateMessage}
		}
	}
	return printing.PrinterStatus{Message: "Printer " + name + " not found"}
}

type fakeNetwork struct {
	interfaces []netif.Interface
	err        error
}

func (f *fakeNetwork) Interfaces(context.Context) ([]netif.Interface, error) {
	return f.interfaces, f.err
}

func (f *fakeNetwork) InterfaceIP(_ context.Context, name string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	for _, iface := range f.interfaces {
		if iface.Name == name && iface.IPv4 != "" {
			return iface.IPv4, true, nil
		}
	}
	return "", false, nil
}

type dispatchCall struct {
	printer string
	path    string
	copies  int
	title   string
	content []byte
}

type fakeFileDispatcher struct {
	result printing.DispatchResult
	calls  []dispatchCall
}

func (f *fakeFileDispatcher) PrintFile(_ context.Context, printerName, filePath string, copies int, title string) printing.DispatchResult {
	content, _ := os.ReadFile(filePath)
	f.calls = append(f.calls, dispatchCall{printer: printerName, path: filePath, copies: copies, title: title, content: content})
	return f.result
}

type serverFixture struct {
	handler    http.Handler
	db         *gorm.DB
	catalog    *catalog.Service
	settings   *settings.Store
	tracker    *printing.Tracker
	dispatcher *fakeFileDispatcher
	printers   *fakePrinters
	network    *fakeNetwork
	realtime   *RealtimeDispatcher
	tokens     *auth.TokenIssuer
	mediaRoot  string
	uploadDir  string
}

type fixtureOptions struct {
	fallbackPrinter   string
	fallbackInterface string
}

func newServerFixture(t *testing.T, options fixtureOptions) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		t.Fatalf("failed to migrate schema: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create catalog service: %v", err)
	}
	store, err := settings.NewStore(settings.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create settings store: %v", err)
	}
	resolver, err := settings.NewResolver(settings.ResolverConfig{
		Database:          db,
		FallbackPrinter:   options.fallbackPrinter,
		FallbackInterface: options.fallbackInterface,
	})
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	printers := &fakePrinters{}
	network := &fakeNetwork{}
	syncer, err := settings.NewSyncer(settings.SyncerConfig{Database: db, Printers: printers, Interfaces: network})
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	realtime := NewRealtimeDispatcher()
	dispatcher := &fakeFileDispatcher{result: printing.DispatchResult{Success: true, Message: "Print job 1 sent to printer Office", SpoolerJobID: 1}}
	uploadDir := t.TempDir()
	tracker, err := printing.NewTracker(printing.TrackerConfig{
		Database:   db,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		UploadDir:  uploadDir,
		Notifier:   realtime,
	})
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "warnain-auth",
		Audience:      "warnain-api",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	mediaRoot := t.TempDir()
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: tokens,
		Users:        userService,
		Catalog:      catalogService,
		Settings:     store,
		Resolver:     resolver,
		Syncer:       syncer,
		Printers:     printers,
		Network:      network,
		Tracker:      tracker,
		Realtime:     realtime,
		MediaRoot:    mediaRoot,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return &serverFixture{
		handler:    handler,
		db:         db,
		catalog:    catalogService,
		settings:   store,
		tracker:    tracker,
		dispatcher: dispatcher,
		printers:   printers,
		network:    network,
		realtime:   realtime,
		tokens:     tokens,
		mediaRoot:  mediaRoot,
		uploadDir:  uploadDir,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

// deviceToken registers a device through the token endpoint.
func (f *serverFixture) deviceToken(t *testing.T, mac string) string {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/auth/token", map[string]string{"mac": mac}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("token request failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var payload tokenResponsePayload
	decodeBody(t, recorder, &payload)
	return payload.Token
}

func (f *serverFixture) category(t *testing.T, title string, images ...string) catalog.Category {
	t.Helper()
	category, err := f.catalog.CreateCategory(context.Background(), catalog.Category{Title: title, Thumbnail: "categories/" + title + ".png"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	for _, image := range images {
		path := filepath.Join(f.mediaRoot, "printables", image)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := f.catalog.AddImage(context.Background(), catalog.PrintableImage{CategoryID: category.ID, Image: "printables/" + image, Source: "https://example.com/" + image}); err != nil {
			t.Fatalf("failed to add image: %v", err)
		}
	}
	return category
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}
