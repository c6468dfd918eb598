package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxUsernameLength = 150

var (
	// ErrInvalidUsername indicates the device identifier was empty or too long.
	ErrInvalidUsername = errors.New("users: invalid username")
	// ErrUserNotFound indicates the requested user id does not exist.
	ErrUserNotFound = errors.New("users: user not found")
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service get-or-creates device users and the shared anonymous account.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// EnsureUser returns the user registered under username, creating it on first use.
func (s *Service) EnsureUser(ctx context.Context, username string) (User, error) {
	name := normalize(username)
	if name == "" || len(name) > maxUsernameLength {
		return User{}, ErrInvalidUsername
	}

	if cached, ok := s.cache.Load(name); ok {
		if user, ok := cached.(User); ok {
			return user, nil
		}
	}

	var user User
	err := s.db.WithContext(ctx).Where("username = ?", name).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			Username:  name,
			IsActive:  true,
			CreatedAt: s.now().UTC(),
		}
		if name == AnonymousUsername {
			user.Email = "anonymous@example.com"
		}
		// A concurrent request may have created the same username.
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return User{}, err
		}
		if user.ID == 0 {
			if err := s.db.WithContext(ctx).Where("username = ?", name).First(&user).Error; err != nil {
				return User{}, err
			}
		}
	} else if err != nil {
		return User{}, err
	}

	s.cache.Store(name, user)
	return user, nil
}

// Anonymous returns the shared anonymous account, creating it lazily.
func (s *Service) Anonymous(ctx context.Context) (User, error) {
	return s.EnsureUser(ctx, AnonymousUsername)
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id uint) (User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
