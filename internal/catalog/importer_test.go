package catalog

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanTitle(t *testing.T) {
	if got := CleanTitle("Dinosaur Coloring Pages "); got != "Dinosaur" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := CleanTitle("Plain"); got != "Plain" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestImporterCreatesCategoriesAndCopiesFiles(t *testing.T) {
	service, _, _ := newTestService(t)
	scrapeDir := t.TempDir()
	mediaRoot := t.TempDir()

	for _, name := range []string{"full/a.png", "full/b.png"} {
		path := filepath.Join(scrapeDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("png-"+name), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	payload := `[
		{
			"category": "Cat Coloring Pages",
			"image_urls": ["https://example.com/a.png"],
			"images": [
				{"url": "https://example.com/a.png", "path": "full/a.png"},
				{"url": "https://example.com/b.png", "path": "full/b.png"}
			]
		}
	]`

	importer, err := NewImporter(ImporterConfig{
		Service:   service,
		MediaRoot: mediaRoot,
		Random:    rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("failed to create importer: %v", err)
	}

	summary, err := importer.Import(context.Background(), strings.NewReader(payload), scrapeDir, "https://example.com")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.Categories != 1 || summary.Images != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	ranked, err := service.RankCategories(context.Background(), SortByTitle)
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Title != "Cat" || ranked[0].Source != "https://example.com" {
		t.Fatalf("unexpected categories %+v", ranked)
	}
	if ranked[0].Thumbnail != "categories/a.png" {
		t.Fatalf("unexpected thumbnail %q", ranked[0].Thumbnail)
	}
	if _, err := os.Stat(filepath.Join(mediaRoot, "categories", "a.png")); err != nil {
		t.Fatalf("expected thumbnail copied: %v", err)
	}

	images, err := service.CategoryImages(context.Background(), ranked[0].ID)
	if err != nil {
		t.Fatalf("images failed: %v", err)
	}
	if len(images) != 2 || images[0].Source != "https://example.com/a.png" || images[1].Image != "printables/b.png" {
		t.Fatalf("unexpected images %+v", images)
	}
}

func TestImporterRejectsMalformedJSON(t *testing.T) {
	service, _, _ := newTestService(t)
	importer, err := NewImporter(ImporterConfig{Service: service, MediaRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create importer: %v", err)
	}
	if _, err := importer.Import(context.Background(), strings.NewReader("{"), t.TempDir(), ""); err == nil {
		t.Fatalf("expected decode error")
	}
}
