package users

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate user schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	first, err := service.EnsureUser(ctx, " 02:00:00:aa:bb:cc ")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first.Username != "02:00:00:aa:bb:cc" || first.ID == 0 {
		t.Fatalf("unexpected user: %#v", first)
	}

	// second call should hit cache and not create a duplicate record.
	second, err := service.EnsureUser(ctx, "02:00:00:aa:bb:cc")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stable user id, got %d and %d", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one user row, got %d", count)
	}
}

func TestAnonymousIsSharedAccount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	anonymous, err := service.Anonymous(ctx)
	if err != nil {
		t.Fatalf("anonymous failed: %v", err)
	}
	if anonymous.Username != AnonymousUsername || anonymous.Email != "anonymous@example.com" {
		t.Fatalf("unexpected anonymous account: %#v", anonymous)
	}
	again, err := service.Anonymous(ctx)
	if err != nil {
		t.Fatalf("anonymous failed: %v", err)
	}
	if again.ID != anonymous.ID {
		t.Fatalf("anonymous account must be shared")
	}
}

func TestEnsureUserRejectsEmptyUsername(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.EnsureUser(context.Background(), "   "); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestGetMissingUser(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Get(context.Background(), 99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
