// services/grant.go
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"achievement-sync-system/models"

	"github.com/google/uuid"
)

// GrantCoordinator runs the optimistic-update-then-reconcile protocol for a
// single achievement id. Per (user, id) states: Idle → Granting → {Reconciled,
// RolledBack}. The in-flight key set guarantees no two grants for the same
// (user, id) run concurrently — a double-tap or re-render race becomes a no-op.
type GrantCoordinator struct {
	catalog  *Catalog
	resolver *IdentityResolver
	merger   *StateMerger
	store    ProfileStore
	remote   *RemoteClient

	mu       sync.Mutex
	inFlight map[string]struct{} // "{userKey}:{achievementId}" keys
}

func NewGrantCoordinator(catalog *Catalog, resolver *IdentityResolver, merger *StateMerger, store ProfileStore, remote *RemoteClient) *GrantCoordinator {
	return &GrantCoordinator{
		catalog:  catalog,
		resolver: resolver,
		merger:   merger,
		store:    store,
		remote:   remote,
		inFlight: make(map[string]struct{}),
	}
}

// Grant marks one achievement earned. It never returns transport errors: the
// optimistic result is authoritative for the caller, remote failures are
// absorbed and logged. A nil notification means nothing changed.
func (g *GrantCoordinator) Grant(ctx context.Context, profile *models.Profile, achievementID string) (*models.Profile, *models.Notification) {
	canonicalID := g.resolver.Resolve(RawRecord{ID: achievementID, Slug: achievementID})
	if canonicalID == "" {
		canonicalID = achievementID
	}

	if !g.catalog.IsEnabled(canonicalID) {
		log.Printf("[GRANT] 🚫 Ignoring grant for disabled achievement %q", canonicalID)
		return profile, nil
	}

	key := profile.StorageKey() + ":" + canonicalID

	// entry guard: a grant for this (user, id) is already running
	g.mu.Lock()
	if _, busy := g.inFlight[key]; busy {
		g.mu.Unlock()
		log.Printf("[GRANT] ⏭️ Grant already in flight for %s, skipping", key)
		return profile, nil
	}
	g.inFlight[key] = struct{}{}
	g.mu.Unlock()

	defer func() {
		// dedup key is released on every terminal path
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}()

	// establish the current canonical list
	current := g.merger.Merge(profile.Achievements)

	idx := indexOf(current, canonicalID)
	if idx >= 0 && current[idx].Earned {
		// idempotent grant
		return profile, nil
	}

	preGrant := &models.Profile{
		Identifier:   profile.Identifier,
		TotalPoints:  TotalPoints(g.catalog, current),
		Achievements: current,
	}

	// optimistic flip — the UI must not wait on the network to react
	now := time.Now().UTC()
	optimisticList := make([]models.AchievementRecord, len(current))
	copy(optimisticList, current)

	var target models.AchievementRecord
	if idx >= 0 {
		optimisticList[idx].Earned = true
		optimisticList[idx].DateEarned = &now
		if optimisticList[idx].Points == 0 {
			optimisticList[idx].Points = g.catalog.PointsFor(canonicalID)
		}
		target = optimisticList[idx]
	} else {
		target = models.AchievementRecord{
			ID:         canonicalID,
			Slug:       canonicalID,
			Points:     g.catalog.PointsFor(canonicalID),
			Earned:     true,
			DateEarned: &now,
		}
		if def, ok := g.catalog.Get(canonicalID); ok {
			target.Title = def.Title
			target.Description = def.Description
		}
		optimisticList = append(optimisticList, target)
	}

	optimistic := &models.Profile{
		Identifier:   profile.Identifier,
		TotalPoints:  TotalPoints(g.catalog, optimisticList),
		Achievements: optimisticList,
	}
	if err := g.store.Save(ctx, optimistic); err != nil {
		log.Printf("[GRANT] ⚠️ Failed to persist optimistic profile for %s: %v", key, err)
	}

	notification := &models.Notification{
		ID:            uuid.NewString(),
		UserKey:       profile.StorageKey(),
		AchievementID: canonicalID,
		Title:         target.Title,
		Points:        target.Points,
		EarnedAt:      now,
	}

	// guest/local-only profiles never touch the network — optimistic is final
	if profile.IsGuest() {
		log.Printf("[GRANT] 🏆 %s earned %q locally (+%d pts, total %d)",
			profile.StorageKey(), canonicalID, target.Points, optimistic.TotalPoints)
		return optimistic, notification
	}

	userID := *profile.Identifier
	ref := GrantRef{ServerID: target.ServerID, Slug: target.Slug, ID: canonicalID}

	err := g.remote.PostGrant(ctx, userID, ref, optimistic.TotalPoints)
	switch {
	case err == nil:
		// happy path: re-fetch the canonical snapshot and adopt it
		if reconciled, rerr := g.reconcile(ctx, userID, profile.Identifier); rerr == nil {
			log.Printf("[GRANT] ✅ %q granted and reconciled for %s (total %d)",
				canonicalID, userID, reconciled.TotalPoints)
			return reconciled, notification
		} else {
			log.Printf("[GRANT] ⚠️ Grant for %q succeeded but reconcile fetch failed: %v — keeping optimistic state", canonicalID, rerr)
			return optimistic, notification
		}

	case remoteKind(err) == ErrKindAlreadyEarned:
		// not an error — the remote is simply ahead of us
		log.Printf("[GRANT] ♻️ %q already earned remotely for %s, reconciling", canonicalID, userID)
		if reconciled, rerr := g.reconcile(ctx, userID, profile.Identifier); rerr == nil {
			return reconciled, notification
		} else {
			// our optimistic points guess may not match what the remote
			// recorded — fall back to the last known-good state
			log.Printf("[GRANT] ↩️ Reconcile fetch failed after already-earned (%v), rolling back %q for %s", rerr, canonicalID, userID)
			if serr := g.store.Save(ctx, preGrant); serr != nil {
				log.Printf("[GRANT] ⚠️ Rollback persist failed for %s: %v", key, serr)
			}
			return preGrant, nil
		}

	case remoteKind(err) == ErrKindUserNotFound, remoteKind(err) == ErrKindAchievementNotFound:
		// common for local-only/dev accounts — local state stays authoritative
		log.Printf("[GRANT] ℹ️ Remote has no record for %s (%v), keeping local state", key, err)
		return optimistic, notification

	default:
		log.Printf("[GRANT] ❌ Grant for %q failed for %s: %v — optimistic state kept, not reconciled", canonicalID, userID, err)
		return optimistic, notification
	}
}

// reconcile replaces local state with a merge against a fresh remote snapshot
func (g *GrantCoordinator) reconcile(ctx context.Context, userID string, identifier *string) (*models.Profile, error) {
	snap, err := g.remote.FetchSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := g.merger.MergeRaw(snap.Records)
	reconciled := &models.Profile{
		Identifier:   identifier,
		TotalPoints:  TotalPoints(g.catalog, merged),
		Achievements: merged,
	}
	if err := g.store.Save(ctx, reconciled); err != nil {
		log.Printf("[GRANT] ⚠️ Failed to persist reconciled profile for %s: %v", userID, err)
	}
	return reconciled, nil
}

func remoteKind(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrKindUnknown
}

func indexOf(records []models.AchievementRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
