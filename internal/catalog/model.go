package catalog

import (
	"time"

	"github.com/warnain/backend/internal/users"
)

// DefaultSource is the crawl origin recorded for categories imported without one.
const DefaultSource = "https://iheartcraftythings.com"

// Category groups printable images under a titled thumbnail.
type Category struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Title     string           `gorm:"size:255;not null;index" json:"title"`
	Thumbnail string           `gorm:"size:255" json:"thumbnail"`
	Source    string           `gorm:"size:500;not null" json:"source"`
	Images    []PrintableImage `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time        `json:"-"`
	UpdatedAt time.Time        `json:"-"`
}

// TableName overrides the default gorm table name.
func (Category) TableName() string {
	return "categories"
}

// PrintableImage is a single coloring page belonging to a category.
type PrintableImage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   *Category `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Image      string    `gorm:"size:255;not null" json:"image"`
	Source     string    `gorm:"size:500" json:"source"`
	CreatedAt  time.Time `json:"-"`
}

// TableName overrides the default gorm table name.
func (PrintableImage) TableName() string {
	return "printable_images"
}

// CategoryAccess is one append-only view of a category by a user.
type CategoryAccess struct {
	ID         uint        `gorm:"primaryKey"`
	CategoryID uint        `gorm:"not null;index"`
	Category   *Category   `gorm:"constraint:OnDelete:CASCADE"`
	UserID     uint        `gorm:"not null;index"`
	User       *users.User `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time   `gorm:"not null;index"`
}

// TableName overrides the default gorm table name.
func (CategoryAccess) TableName() string {
	return "category_accesses"
}

// CategorySummary is a category annotated with its access statistics.
type CategorySummary struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Thumbnail    string     `json:"thumbnail"`
	Source       string     `json:"source"`
	AccessCount  int64      `json:"access_count"`
	LatestAccess *time.Time `json:"-"`
}

// Models lists the gorm models owned by this package.
func Models() []any {
	return []any{&Category{}, &PrintableImage{}, &CategoryAccess{}}
}
