package users

import (
	"strings"
	"time"
)

// AnonymousUsername names the shared account that unauthenticated traffic is attributed to.
const AnonymousUsername = "anonymous"

// User is a device-bound account. Mobile clients register with their device identifier.
type User struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username;size:150;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;size:254"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
