package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	categoriesDir = "categories"
	printablesDir = "printables"
	titleSuffix   = "Coloring Pages"
)

var errMissingService = errors.New("catalog service is required")

// ScrapedImage is one downloaded page in the crawler output.
type ScrapedImage struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// ScrapedCategory is one category entry in the crawler output.
type ScrapedCategory struct {
	Category  string         `json:"category"`
	ImageURLs []string       `json:"image_urls"`
	Images    []ScrapedImage `json:"images"`
}

// ImporterConfig describes the dependencies of the crawler importer.
type ImporterConfig struct {
	Service   *Service
	MediaRoot string
	Logger    *zap.Logger
	Random    *rand.Rand
}

// Importer loads crawler output into the catalog and copies the files under the media root.
type Importer struct {
	service   *Service
	mediaRoot string
	logger    *zap.Logger
	random    *rand.Rand
}

// ImportSummary reports what an import run created.
type ImportSummary struct {
	Categories int
	Images     int
}

// NewImporter constructs an Importer.
func NewImporter(cfg ImporterConfig) (*Importer, error) {
	if cfg.Service == nil {
		return nil, errMissingService
	}
	if strings.TrimSpace(cfg.MediaRoot) == "" {
		return nil, fmt.Errorf("catalog: media root is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	random := cfg.Random
	if random == nil {
		random = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Importer{
		service:   cfg.Service,
		mediaRoot: cfg.MediaRoot,
		logger:    logger,
		random:    random,
	}, nil
}

// CleanTitle removes the crawler's "Coloring Pages" suffix from a category title.
func CleanTitle(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, titleSuffix, ""))
}

// Import reads crawler JSON from r. Image paths are resolved against imageBase and
// every created image records its crawl URL; source is stored on each category.
func (i *Importer) Import(ctx context.Context, r io.Reader, imageBase, source string) (ImportSummary, error) {
	var entries []ScrapedCategory
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return ImportSummary{}, fmt.Errorf("catalog: decode import file: %w", err)
	}

	summary := ImportSummary{}
	for _, entry := range entries {
		title := CleanTitle(entry.Category)
		i.logger.Info("importing category", zap.String("title", title))

		byURL := make(map[string]ScrapedImage, len(entry.Images))
		order := make([]string, 0, len(entry.Images))
		for _, image := range entry.Images {
			if _, seen := byURL[image.URL]; !seen {
				order = append(order, image.URL)
			}
			byURL[image.URL] = image
		}

		thumbnail := ""
		if len(entry.ImageURLs) > 0 {
			pick := entry.ImageURLs[i.random.Intn(len(entry.ImageURLs))]
			scraped, ok := byURL[pick]
			if !ok {
				return summary, fmt.Errorf("catalog: thumbnail %s of %q has no downloaded image", pick, title)
			}
			stored, err := i.copyIntoMedia(filepath.Join(imageBase, scraped.Path), categoriesDir)
			if err != nil {
				return summary, err
			}
			thumbnail = stored
		}

		category, err := i.service.CreateCategory(ctx, Category{
			Title:     title,
			Thumbnail: thumbnail,
			Source:    source,
		})
		if err != nil {
			return summary, err
		}
		summary.Categories++

		for _, url := range order {
			scraped := byURL[url]
			stored, err := i.copyIntoMedia(filepath.Join(imageBase, scraped.Path), printablesDir)
			if err != nil {
				return summary, err
			}
			if _, err := i.service.AddImage(ctx, PrintableImage{
				CategoryID: category.ID,
				Image:      stored,
				Source:     url,
			}); err != nil {
				return summary, err
			}
			summary.Images++
		}
	}
	return summary, nil
}

// copyIntoMedia copies src under mediaRoot/subdir and returns the media-relative path.
func (i *Importer) copyIntoMedia(src, subdir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("catalog: open %s: %w", src, err)
	}
	defer in.Close()

	targetDir := filepath.Join(i.mediaRoot, subdir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("catalog: create %s: %w", targetDir, err)
	}

	name := filepath.Base(src)
	if _, err := os.Stat(filepath.Join(targetDir, name)); err == nil {
		name = uuid.NewString()[:8] + "_" + name
	}

	out, err := os.Create(filepath.Join(targetDir, name))
	if err != nil {
		return "", fmt.Errorf("catalog: create %s: %w", name, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("catalog: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(subdir, name)), nil
}
