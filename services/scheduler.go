// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"achievement-sync-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartCatalogRefreshScheduler periodically re-downloads the published catalog
// object from R2 and swaps it in, so definition/point changes roll out without
// a redeploy. No-op when R2 isn't configured.
func (s *AchievementService) StartCatalogRefreshScheduler(objectKey string, interval time.Duration) {
	if !utils.R2Enabled() || objectKey == "" {
		log.Println("[Scheduler] Catalog refresh disabled (no R2 configuration)")
		return
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := s.ReloadCatalogFromR2(context.Background(), objectKey); err != nil {
				log.Printf("[Scheduler] Catalog refresh failed: %v", err)
			}
		}),
	)
}

// ReloadCatalogFromR2 fetches, parses and swaps the catalog in place
func (s *AchievementService) ReloadCatalogFromR2(ctx context.Context, objectKey string) error {
	data, err := utils.FetchCatalogObject(ctx, objectKey)
	if err != nil {
		return err
	}
	defs, disabled, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	s.Catalog.Replace(defs, disabled)
	log.Printf("✅ Catalog refreshed from R2: %d definitions, %d disabled", len(defs), len(disabled))
	return nil
}
