package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/warnain/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SortKey selects the category ranking order.
type SortKey string

const (
	SortByTitle     SortKey = "title"
	SortByFrequency SortKey = "freq"
	SortByAccess    SortKey = "access"
)

const (
	// PageSize is the number of images returned per page by ListImages.
	PageSize = 20
	// LastAccessedLimit bounds the recent-access listing.
	LastAccessedLimit = 20
)

const (
	opServiceNew      = "catalog.service.new"
	opRecordAccess    = "catalog.record_access"
	opRankCategories  = "catalog.rank_categories"
	opLastAccessed    = "catalog.last_accessed"
	opAccessCount     = "catalog.access_count"
	opGetCategory     = "catalog.get_category"
	opCategoryImages  = "catalog.category_images"
	opListImages      = "catalog.list_images"
	opGetImage        = "catalog.get_image"
	opCreateCategory  = "catalog.create_category"
	opDeleteCategory  = "catalog.delete_category"
	opAddImage        = "catalog.add_image"
	opAccessTimestamp = "catalog.latest_access"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// AccessObserver is notified after an access row is stored.
type AccessObserver interface {
	CategoryAccessed(categoryID uint)
}

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Observer AccessObserver
}

// Service owns categories, their images and the access log used for ranking.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	logger   *zap.Logger
	observer AccessObserver
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:       cfg.Database,
		clock:    clock,
		logger:   logger,
		observer: cfg.Observer,
	}, nil
}

// ParseSortKey maps a query value onto a SortKey. Empty selects frequency;
// unrecognised values fall back to title.
func ParseSortKey(raw string) SortKey {
	switch SortKey(strings.TrimSpace(raw)) {
	case "", SortByFrequency:
		return SortByFrequency
	case SortByAccess:
		return SortByAccess
	default:
		return SortByTitle
	}
}

// GetCategory loads a category by id.
func (s *Service) GetCategory(ctx context.Context, id uint) (Category, error) {
	var category Category
	err := s.db.WithContext(ctx).First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Category{}, serviceerror.NotFound(opGetCategory, "category_not_found", "category %d", id)
	}
	if err != nil {
		s.logError(opGetCategory, "select_failed", err, zap.Uint("category_id", id))
		return Category{}, serviceerror.New(opGetCategory, "select_failed", err)
	}
	return category, nil
}

// RecordAccess appends one access row for the category on behalf of userID.
func (s *Service) RecordAccess(ctx context.Context, categoryID, userID uint) (CategoryAccess, error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return CategoryAccess{}, err
	}
	access := CategoryAccess{
		CategoryID: categoryID,
		UserID:     userID,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&access).Error; err != nil {
		s.logError(opRecordAccess, "insert_failed", err,
			zap.Uint("category_id", categoryID),
			zap.Uint("user_id", userID))
		return CategoryAccess{}, serviceerror.New(opRecordAccess, "insert_failed", err)
	}
	if s.observer != nil {
		s.observer.CategoryAccessed(categoryID)
	}
	return access, nil
}

// AccessCount returns the number of access rows recorded for a category.
func (s *Service) AccessCount(ctx context.Context, categoryID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CategoryAccess{}).Where("category_id = ?", categoryID).Count(&count).Error
	if err != nil {
		s.logError(opAccessCount, "count_failed", err, zap.Uint("category_id", categoryID))
		return 0, serviceerror.New(opAccessCount, "count_failed", err)
	}
	return count, nil
}

type accessCountRow struct {
	CategoryID  uint
	AccessCount int64
}

type latestAccessRow struct {
	CategoryID uint
	CreatedAt  time.Time
}

// RankCategories returns every category with its access statistics, ordered by key.
func (s *Service) RankCategories(ctx context.Context, key SortKey) ([]CategorySummary, error) {
	var categories []Category
	if err := s.db.WithContext(ctx).Order("title asc").Order("id asc").Find(&categories).Error; err != nil {
		s.logError(opRankCategories, "select_failed", err)
		return nil, serviceerror.New(opRankCategories, "select_failed", err)
	}

	counts, err := s.accessCounts(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.latestAccesses(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]CategorySummary, 0, len(categories))
	for _, category := range categories {
		summary := summarize(category, counts[category.ID])
		if ts, ok := latest[category.ID]; ok {
			value := ts
			summary.LatestAccess = &value
		}
		summaries = append(summaries, summary)
	}

	sortSummaries(summaries, key)
	return summaries, nil
}

// LastAccessed returns the categories of the most recent access rows, newest first.
// A category appears once per access row.
func (s *Service) LastAccessed(ctx context.Context) ([]CategorySummary, error) {
	var accesses []CategoryAccess
	err := s.db.WithContext(ctx).
		Preload("Category").
		Order("created_at desc").
		Order("id desc").
		Limit(LastAccessedLimit).
		Find(&accesses).Error
	if err != nil {
		s.logError(opLastAccessed, "select_failed", err)
		return nil, serviceerror.New(opLastAccessed, "select_failed", err)
	}

	counts, err := s.accessCounts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]CategorySummary, 0, len(accesses))
	for _, access := range accesses {
		if access.Category == nil {
			continue
		}
		summaries = append(summaries, summarize(*access.Category, counts[access.CategoryID]))
	}
	return summaries, nil
}

// CategoryImages returns the images of an existing category.
func (s *Service) CategoryImages(ctx context.Context, categoryID uint) ([]PrintableImage, error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	var images []PrintableImage
	if err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("id asc").Find(&images).Error; err != nil {
		s.logError(opCategoryImages, "select_failed", err, zap.Uint("category_id", categoryID))
		return nil, serviceerror.New(opCategoryImages, "select_failed", err)
	}
	return images, nil
}

// ImageQuery filters the paginated image listing.
type ImageQuery struct {
	CategoryID uint
	Search     string
	Page       int
}

// ImagePage is one page of the image listing.
type ImagePage struct {
	Count       int64
	Page        int
	HasNext     bool
	HasPrevious bool
	Results     []PrintableImage
}

// ListImages pages through printable images, optionally filtered by category
// and by a case-insensitive match on the category title.
func (s *Service) ListImages(ctx context.Context, query ImageQuery) (ImagePage, error) {
	base := s.db.WithContext(ctx).Model(&PrintableImage{})
	if query.CategoryID != 0 {
		base = base.Where("printable_images.category_id = ?", query.CategoryID)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		base = base.
			Joins("JOIN categories ON categories.id = printable_images.category_id").
			Where("LOWER(categories.title) LIKE ?", pattern)
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		s.logError(opListImages, "count_failed", err)
		return ImagePage{}, serviceerror.New(opListImages, "count_failed", err)
	}

	page := clampPage(query.Page, count)
	var images []PrintableImage
	err := base.Session(&gorm.Session{}).
		Order("printable_images.id asc").
		Offset((page - 1) * PageSize).
		Limit(PageSize).
		Find(&images).Error
	if err != nil {
		s.logError(opListImages, "select_failed", err)
		return ImagePage{}, serviceerror.New(opListImages, "select_failed", err)
	}

	return ImagePage{
		Count:       count,
		Page:        page,
		HasNext:     int64(page*PageSize) < count,
		HasPrevious: page > 1,
		Results:     images,
	}, nil
}

// GetImage loads a printable image by id.
func (s *Service) GetImage(ctx context.Context, id uint) (PrintableImage, error) {
	var image PrintableImage
	err := s.db.WithContext(ctx).First(&image, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PrintableImage{}, serviceerror.NotFound(opGetImage, "image_not_found", "image %d", id)
	}
	if err != nil {
		s.logError(opGetImage, "select_failed", err, zap.Uint("image_id", id))
		return PrintableImage{}, serviceerror.New(opGetImage, "select_failed", err)
	}
	return image, nil
}

// CreateCategory stores a new category. An empty source defaults to DefaultSource.
func (s *Service) CreateCategory(ctx context.Context, category Category) (Category, error) {
	category.Title = strings.TrimSpace(category.Title)
	if category.Title == "" {
		return Category{}, serviceerror.Invalid(opCreateCategory, "missing_title", "category title is required")
	}
	if strings.TrimSpace(category.Source) == "" {
		category.Source = DefaultSource
	}
	category.ID = 0
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		s.logError(opCreateCategory, "insert_failed", err, zap.String("title", category.Title))
		return Category{}, serviceerror.New(opCreateCategory, "insert_failed", err)
	}
	return category, nil
}

// AddImage stores a printable image under an existing category.
func (s *Service) AddImage(ctx context.Context, image PrintableImage) (PrintableImage, error) {
	if strings.TrimSpace(image.Image) == "" {
		return PrintableImage{}, serviceerror.Invalid(opAddImage, "missing_image", "image path is required")
	}
	if _, err := s.GetCategory(ctx, image.CategoryID); err != nil {
		return PrintableImage{}, err
	}
	image.ID = 0
	image.Category = nil
	if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
		s.logError(opAddImage, "insert_failed", err, zap.Uint("category_id", image.CategoryID))
		return PrintableImage{}, serviceerror.New(opAddImage, "insert_failed", err)
	}
	return image, nil
}

// DeleteCategory removes a category together with its images and access rows.
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&CategoryAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&PrintableImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Category{}, id).Error
	})
	if err != nil {
		s.logError(opDeleteCategory, "delete_failed", err, zap.Uint("category_id", id))
		return serviceerror.New(opDeleteCategory, "delete_failed", err)
	}
	return nil
}

func (s *Service) accessCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []accessCountRow
	err := s.db.WithContext(ctx).
		Model(&CategoryAccess{}).
		Select("category_id, COUNT(*) AS access_count").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		s.logError(opAccessCount, "aggregate_failed", err)
		return nil, serviceerror.New(opAccessCount, "aggregate_failed", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.AccessCount
	}
	return counts, nil
}

// latestAccesses selects the newest created_at per category. The column is
// selected directly so drivers decode it with its declared time type.
func (s *Service) latestAccesses(ctx context.Context) (map[uint]time.Time, error) {
	var rows []latestAccessRow
	err := s.db.WithContext(ctx).
		Table("category_accesses AS a").
		Select("a.category_id, a.created_at").
		Where("a.created_at = (SELECT MAX(b.created_at) FROM category_accesses b WHERE b.category_id = a.category_id)").
		Scan(&rows).Error
	if err != nil {
		s.logError(opAccessTimestamp, "aggregate_failed", err)
		return nil, serviceerror.New(opAccessTimestamp, "aggregate_failed", err)
	}
	latest := make(map[uint]time.Time, len(rows))
	for _, row := range rows {
		latest[row.CategoryID] = row.CreatedAt
	}
	return latest, nil
}

func summarize(category Category, count int64) CategorySummary {
	return CategorySummary{
		ID:          category.ID,
		Title:       category.Title,
		Thumbnail:   category.Thumbnail,
		Source:      category.Source,
		AccessCount: count,
	}
}

func sortSummaries(summaries []CategorySummary, key SortKey) {
	byTitle := func(a, b CategorySummary) bool {
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	}

	switch key {
	case SortByFrequency:
		sort.SliceStable(summaries, func(i, j int) bool {
			a, b := summaries[i], summaries[j]
			if a.AccessCount != b.AccessCount {
				return a.AccessCount > b.AccessCount
			}
			if cmp := compareLatest(a.LatestAccess, b.LatestAccess); cmp != 0 {
				return cmp < 0
			}
			return byTitle(a, b)
		})
	case SortByAccess:
		sort.SliceStable(summaries, func(i, j int) bool {
			a, b := summaries[i], summaries[j]
			if cmp := compareLatest(a.LatestAccess, b.LatestAccess); cmp != 0 {
				return cmp < 0
			}
			return byTitle(a, b)
		})
	default:
		sort.SliceStable(summaries, func(i, j int) bool {
			return byTitle(summaries[i], summaries[j])
		})
	}
}

// compareLatest orders newest first with missing timestamps last.
func compareLatest(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case b.After(*a):
		return 1
	default:
		return 0
	}
}

func clampPage(page int, count int64) int {
	if page < 1 {
		return 1
	}
	lastPage := int((count + PageSize - 1) / PageSize)
	if lastPage < 1 {
		lastPage = 1
	}
	if page > lastPage {
		return lastPage
	}
	return page
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}
