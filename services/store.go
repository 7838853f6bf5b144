// services/store.go
package services

import (
	"context"
	"errors"
	"sync"

	"achievement-sync-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore is the local persistence boundary: get/set/remove of whole
// profile snapshots, keyed separately for guest vs. registered profiles.
// Snapshots are always replaced atomically, never patched.
type ProfileStore interface {
	Load(ctx context.Context, key string) (*models.Profile, bool, error)
	Save(ctx context.Context, profile *models.Profile) error
	Remove(ctx context.Context, key string) error
}

// GormProfileStore persists snapshots in the profile_snapshots table
type GormProfileStore struct {
	DB *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{DB: db}
}

func (s *GormProfileStore) Load(ctx context.Context, key string) (*models.Profile, bool, error) {
	var snap models.ProfileSnapshot
	if err := s.DB.WithContext(ctx).Where("key = ?", key).First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &models.Profile{
		Identifier:   snap.Identifier,
		TotalPoints:  snap.TotalPoints,
		Achievements: snap.Achievements,
	}, true, nil
}

func (s *GormProfileStore) Save(ctx context.Context, profile *models.Profile) error {
	snap := models.ProfileSnapshot{
		Key:          profile.StorageKey(),
		Identifier:   profile.Identifier,
		TotalPoints:  profile.TotalPoints,
		Achievements: profile.Achievements,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"identifier", "total_points", "achievements", "updated_at"}),
	}).Create(&snap).Error
}

func (s *GormProfileStore) Remove(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("key = ?", key).Delete(&models.ProfileSnapshot{}).Error
}

// MemoryProfileStore keeps snapshots in memory — used in dev mode (no
// DATABASE_URL) and by tests.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*models.Profile)}
}

func (s *MemoryProfileStore) Load(ctx context.Context, key string) (*models.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[key]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (s *MemoryProfileStore) Save(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.StorageKey()] = profile.Clone()
	return nil
}

func (s *MemoryProfileStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, key)
	return nil
}
