package services

import (
	"testing"
	"time"

	"achievement-sync-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMerger(catalog *Catalog) *StateMerger {
	return NewStateMerger(catalog, NewIdentityResolver(catalog))
}

func TestMerge_EmptyStored(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	out := m.Merge(nil)
	require.Len(t, out, 3)

	assert.Equal(t, "profile", out[0].ID)
	assert.Equal(t, "Looking Good!", out[0].Title)
	assert.Equal(t, 10, out[0].Points)
	for _, rec := range out {
		assert.False(t, rec.Earned)
		assert.Nil(t, rec.DateEarned)
	}
	assert.Equal(t, 0, TotalPoints(catalog, out))
}

func TestMerge_Idempotent(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	now := time.Now().UTC()
	stored := []models.AchievementRecord{
		{ID: "memory1", Points: 20, Earned: true, DateEarned: &now},
		{ID: "mystery", Title: "Mystery Prize", Points: 5, Earned: true, DateEarned: &now},
	}

	once := m.Merge(stored)
	twice := m.Merge(once)
	assert.Equal(t, once, twice)
}

func TestMerge_KeepsEarnedStateAndPointsOverride(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	earnedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := []models.AchievementRecord{
		// remote once recorded 25 points for this — catalog says 20 now, the
		// stored value must win so old totals don't shift retroactively
		{ID: "memory1", Title: "Stale Title", Points: 25, Earned: true, DateEarned: &earnedAt},
	}

	out := m.Merge(stored)
	require.Len(t, out, 3)

	var rec models.AchievementRecord
	for _, r := range out {
		if r.ID == "memory1" {
			rec = r
		}
	}
	assert.True(t, rec.Earned)
	require.NotNil(t, rec.DateEarned)
	assert.Equal(t, earnedAt, *rec.DateEarned)
	assert.Equal(t, 25, rec.Points)
	// title/description come from the definition, not stale storage
	assert.Equal(t, "Memory Rookie", rec.Title)

	assert.Equal(t, 25, TotalPoints(catalog, out))
}

func TestMerge_ExtrasPreserved(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	now := time.Now().UTC()
	stored := []models.AchievementRecord{
		{ID: "seasonal2026", Title: "Season Star", Points: 40, Earned: true, DateEarned: &now},
	}

	out := m.Merge(stored)
	require.Len(t, out, 4)

	extra := out[3]
	assert.Equal(t, "seasonal2026", extra.ID)
	assert.Equal(t, "Season Star", extra.Title)
	assert.True(t, extra.Earned)
	assert.Equal(t, 40, TotalPoints(catalog, out))
}

func TestMerge_DisabledExcludedEverywhere(t *testing.T) {
	catalog := testCatalog("memory2", "banned-extra")
	m := newMerger(catalog)

	now := time.Now().UTC()
	stored := []models.AchievementRecord{
		// storage claims this disabled id was earned — it must not show up
		{ID: "memory2", Points: 30, Earned: true, DateEarned: &now},
		{ID: "banned-extra", Points: 99, Earned: true, DateEarned: &now},
		{ID: "memory1", Points: 20, Earned: true, DateEarned: &now},
	}

	out := m.Merge(stored)
	require.Len(t, out, 2)
	for _, rec := range out {
		assert.NotEqual(t, "memory2", rec.ID)
		assert.NotEqual(t, "banned-extra", rec.ID)
	}
	assert.Equal(t, 20, TotalPoints(catalog, out))
}

func TestMerge_NormalizesDateEarnedInvariant(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	now := time.Now().UTC()
	stored := []models.AchievementRecord{
		// corrupt record: date without earned flag
		{ID: "memory1", Points: 20, Earned: false, DateEarned: &now},
	}

	out := m.Merge(stored)
	for _, rec := range out {
		if !rec.Earned {
			assert.Nil(t, rec.DateEarned, "unearned record %s must have nil DateEarned", rec.ID)
		}
	}
}

func TestMerge_DuplicateStoredIDsFirstWins(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	now := time.Now().UTC()
	stored := []models.AchievementRecord{
		{ID: "memory1", Points: 25, Earned: true, DateEarned: &now},
		{ID: "memory1", Points: 99, Earned: false},
	}

	out := m.Merge(stored)
	count := 0
	for _, rec := range out {
		if rec.ID == "memory1" {
			count++
			assert.Equal(t, 25, rec.Points)
			assert.True(t, rec.Earned)
		}
	}
	assert.Equal(t, 1, count)
}

func TestMergeRaw_ResolvesHeterogeneousIdentity(t *testing.T) {
	catalog := testCatalog()
	m := newMerger(catalog)

	now := time.Now().UTC()
	raws := []RawRecord{
		// remote record known only by title + server id
		{Title: "Memory Pro", ServerID: "srv-2", Earned: true, DateEarned: &now, Points: 30, HasPoints: true},
	}

	out := m.MergeRaw(raws)
	var rec models.AchievementRecord
	for _, r := range out {
		if r.ID == "memory2" {
			rec = r
		}
	}
	assert.True(t, rec.Earned)
	assert.Equal(t, "srv-2", rec.ServerID)

	// the pass must have taught the resolver the serverId pairing
	assert.Equal(t, "memory2", m.resolver.Resolve(RawRecord{ServerID: "srv-2"}))
}
