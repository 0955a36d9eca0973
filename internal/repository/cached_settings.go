package repository

import (
	"context"
	"errors"
	"time"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	"CreditIntel/pkg/cache"
	applogger "CreditIntel/pkg/logger"
)

const settingsCacheKey = "settings"

// CachedSettingsStore reads settings through a cache. Misses from the backing
// store are not cached so a first save is visible immediately.
type CachedSettingsStore struct {
	next  domrepo.SettingsStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedSettingsStore(next domrepo.SettingsStore, c cache.Service, ttl time.Duration) *CachedSettingsStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSettingsStore{next: next, cache: c, ttl: ttl, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CachedSettingsStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CachedSettingsStore) GetSettings(ctx context.Context) (models.CreditSettings, error) {
	var set models.CreditSettings
	err := s.cache.Get(ctx, settingsCacheKey, &set)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("settings cache read failed", applogger.Error(err))
	}

	set, err = s.next.GetSettings(ctx)
	if err != nil {
		return models.CreditSettings{}, err
	}
	if err := s.cache.Set(ctx, settingsCacheKey, set, s.ttl); err != nil {
		s.l.Warn("settings cache write failed", applogger.Error(err))
	}
	return set, nil
}

func (s *CachedSettingsStore) SaveSettings(ctx context.Context, set models.CreditSettings) error {
	if err := s.next.SaveSettings(ctx, set); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, settingsCacheKey); err != nil {
		s.l.Warn("settings cache invalidation failed", applogger.Error(err))
	}
	return nil
}

var _ domrepo.SettingsStore = (*CachedSettingsStore)(nil)
