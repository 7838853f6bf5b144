// workers/achievement_resync_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"achievement-sync-system/models"
	"achievement-sync-system/services"

	"gorm.io/gorm"
)

// AchievementResyncWorker periodically re-fetches the remote snapshot for
// every registered profile and re-merges it. This repairs the states the grant
// coordinator is allowed to leave behind: optimistic grants whose reconcile
// fetch failed, and remote-side changes made while this service was down.
// Guest profiles are skipped — they have no remote record.
type AchievementResyncWorker struct {
	db       *gorm.DB
	svc      *services.AchievementService
	interval time.Duration
}

func NewAchievementResyncWorker(db *gorm.DB, svc *services.AchievementService, interval time.Duration) *AchievementResyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AchievementResyncWorker{
		db:       db,
		svc:      svc,
		interval: interval,
	}
}

func (w *AchievementResyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Achievement Resync Worker (remote snapshots → profile_snapshots)…")
	go w.run(ctx)
}

func (w *AchievementResyncWorker) run(ctx context.Context) {
	// Initial pass on boot — cold starts also rebuild the resolver's
	// serverId hint cache from the first fetched snapshots
	if err := w.resyncAll(ctx); err != nil {
		log.Printf("⚠️ Initial resync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.resyncAll(ctx); err != nil {
				log.Printf("❌ Resync pass failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Achievement Resync Worker stopped")
			return
		}
	}
}

// resyncAll walks every registered profile snapshot and reconciles it
func (w *AchievementResyncWorker) resyncAll(ctx context.Context) error {
	var snaps []models.ProfileSnapshot
	if err := w.db.WithContext(ctx).
		Where("key LIKE ?", "user:%").
		Find(&snaps).Error; err != nil {
		return err
	}

	if len(snaps) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📡 Resyncing %d registered profile(s)…", len(snaps))

	var okCount, errCount int
	for _, snap := range snaps {
		profile := &models.Profile{
			Identifier:   snap.Identifier,
			TotalPoints:  snap.TotalPoints,
			Achievements: snap.Achievements,
		}
		if profile.IsGuest() {
			continue
		}

		synced, err := w.svc.SyncWithRemote(ctx, profile)
		if err != nil {
			errCount++
			log.Printf("[SYNC] ⚠️ Resync failed for %s: %v", snap.Key, err)
			continue
		}
		okCount++

		if synced.TotalPoints != snap.TotalPoints {
			// local-only earns are not guaranteed to survive reconciliation;
			// the remote snapshot is authoritative for registered profiles
			log.Printf("[SYNC] ♻️ %s total adjusted %d → %d by remote snapshot",
				snap.Key, snap.TotalPoints, synced.TotalPoints)
		}
	}

	log.Printf("[SYNC] ✅ Resync pass done (%d ok, %d errors)", okCount, errCount)
	return nil
}
