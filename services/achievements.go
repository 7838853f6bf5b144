// services/achievements.go
package services

import (
	"context"
	"log"

	"achievement-sync-system/models"
)

// AchievementService is the caller-facing facade: screens and finished games
// talk to this, never to the coordinator/merger directly.
type AchievementService struct {
	Catalog  *Catalog
	Resolver *IdentityResolver
	Merger   *StateMerger
	Store    ProfileStore
	Remote   *RemoteClient

	coordinator *GrantCoordinator
	chains      *ChainResolver

	notifications *NotificationService // optional — nil disables the SSE feed
}

func NewAchievementService(catalog *Catalog, store ProfileStore, remote *RemoteClient, notifications *NotificationService) *AchievementService {
	resolver := NewIdentityResolver(catalog)
	merger := NewStateMerger(catalog, resolver)
	return &AchievementService{
		Catalog:       catalog,
		Resolver:      resolver,
		Merger:        merger,
		Store:         store,
		Remote:        remote,
		coordinator:   NewGrantCoordinator(catalog, resolver, merger, store, remote),
		chains:        NewChainResolver(),
		notifications: notifications,
	}
}

// InitAchievements builds the authoritative list for a profile at load time:
// stored snapshot merged against the catalog, totals recomputed, persisted.
func (s *AchievementService) InitAchievements(ctx context.Context, profile *models.Profile) ([]models.AchievementRecord, error) {
	stored, found, err := s.Store.Load(ctx, profile.StorageKey())
	if err != nil {
		return nil, err
	}

	var records []models.AchievementRecord
	if found {
		records = stored.Achievements
	}

	merged := s.Merger.Merge(records)
	profile.Achievements = merged
	profile.TotalPoints = TotalPoints(s.Catalog, merged)

	if err := s.Store.Save(ctx, profile); err != nil {
		return nil, err
	}
	return merged, nil
}

// GrantAchievement runs the full grant protocol for one id. Never errors out
// to the caller — remote failures are absorbed by the coordinator.
func (s *AchievementService) GrantAchievement(ctx context.Context, profile *models.Profile, achievementID string) (*models.Profile, *models.Notification) {
	updated, notification := s.coordinator.Grant(ctx, profile, achievementID)
	s.record(notification)
	return updated, notification
}

// GrantChain grants every id the game/level pair implies, strictly in order.
// Each grant carries the previous grant's profile forward so point totals
// accumulate against up-to-date state, not a stale pre-loop snapshot.
func (s *AchievementService) GrantChain(ctx context.Context, profile *models.Profile, kind models.GameKind, level int) (*models.Profile, []models.Notification) {
	ids := s.chains.IDsForGrant(kind, level)
	if len(ids) == 0 {
		log.Printf("[ACHIEVEMENTS] ⚠️ No achievements configured for game %q level %d", kind, level)
		return profile, nil
	}

	current := profile
	var notifications []models.Notification
	for _, id := range ids {
		updated, n := s.coordinator.Grant(ctx, current, id)
		current = updated
		if n != nil {
			s.record(n)
			notifications = append(notifications, *n)
		}
	}
	return current, notifications
}

// SyncWithRemote re-fetches the remote snapshot and adopts the merge — used by
// the resync worker to repair optimistic state a grant couldn't reconcile.
// Guest profiles have nothing to sync.
func (s *AchievementService) SyncWithRemote(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if profile.IsGuest() {
		return profile, nil
	}

	snap, err := s.Remote.FetchSnapshot(ctx, *profile.Identifier)
	if err != nil {
		return nil, err
	}

	merged := s.Merger.MergeRaw(snap.Records)
	synced := &models.Profile{
		Identifier:   profile.Identifier,
		TotalPoints:  TotalPoints(s.Catalog, merged),
		Achievements: merged,
	}
	if err := s.Store.Save(ctx, synced); err != nil {
		return nil, err
	}
	return synced, nil
}

// TotalPoints exposes the invariant sum for callers holding a bare record list
func (s *AchievementService) TotalPoints(records []models.AchievementRecord) int {
	return TotalPoints(s.Catalog, records)
}

func (s *AchievementService) record(n *models.Notification) {
	if n == nil || s.notifications == nil {
		return
	}
	if err := s.notifications.Record(n); err != nil {
		log.Printf("[ACHIEVEMENTS] ⚠️ Failed to persist notification %s: %v", n.ID, err)
	}
}
