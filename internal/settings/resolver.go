package settings

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResolverConfig describes the two tiers consulted by a Resolver.
type ResolverConfig struct {
	Database          *gorm.DB
	FallbackPrinter   string
	FallbackInterface string
	Logger            *zap.Logger
}

// Resolver picks the printer and interface to use when a request names none.
// An active default row wins over the configured fallback. Nothing is cached.
type Resolver struct {
	db                *gorm.DB
	fallbackPrinter   string
	fallbackInterface string
	logger            *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Resolver{
		db:                cfg.Database,
		fallbackPrinter:   strings.TrimSpace(cfg.FallbackPrinter),
		fallbackInterface: strings.TrimSpace(cfg.FallbackInterface),
		logger:            logger,
	}, nil
}

// DefaultPrinter returns the active default printer, else the configured fallback.
func (r *Resolver) DefaultPrinter(ctx context.Context) (string, bool) {
	var row PrinterSettings
	name, found := r.lookupDefault(ctx, &row, "printer", func() string { return row.Name })
	if found {
		return name, true
	}
	return r.fallbackPrinter, r.fallbackPrinter != ""
}

// DefaultInterface returns the active default interface, else the configured fallback.
func (r *Resolver) DefaultInterface(ctx context.Context) (string, bool) {
	var row NetworkInterface
	name, found := r.lookupDefault(ctx, &row, "interface", func() string { return row.Name })
	if found {
		return name, true
	}
	return r.fallbackInterface, r.fallbackInterface != ""
}

// lookupDefault loads the active default row into dest. Storage errors are
// logged and reported as not found so the caller falls back to configuration.
func (r *Resolver) lookupDefault(ctx context.Context, dest any, kind string, name func() string) (string, bool) {
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("id asc").
		Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false
	}
	if err != nil {
		r.logger.Warn("default lookup failed, using configured fallback",
			zap.String("kind", kind),
			zap.Error(err))
		return "", false
	}
	return name(), true
}
