package services

import (
	"testing"

	"achievement-sync-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(disabled ...string) *Catalog {
	return NewCatalog([]models.AchievementDefinition{
		{ID: "profile", Title: "Looking Good!", Description: "Finished setting up your profile", Points: 10},
		{ID: "memory1", Title: "Memory Rookie", Description: "Completed the memory game on easy", Points: 20},
		{ID: "memory2", Title: "Memory Pro", Description: "Completed the memory game on medium", Points: 30},
	}, disabled)
}

func TestResolver_CanonicalIDIsIdempotent(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	assert.Equal(t, "memory1", r.Resolve(RawRecord{ID: "memory1"}))
	assert.Equal(t, "memory1", r.Resolve(RawRecord{ID: "memory1"}))
}

func TestResolver_SlugAndLegacyID(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	assert.Equal(t, "memory2", r.Resolve(RawRecord{Slug: "memory2"}))
	assert.Equal(t, "profile", r.Resolve(RawRecord{LegacyID: "profile"}))
}

func TestResolver_TitleMatch(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	assert.Equal(t, "memory1", r.Resolve(RawRecord{Title: "Memory Rookie"}))
	// case-folded
	assert.Equal(t, "memory1", r.Resolve(RawRecord{Title: "MEMORY ROOKIE"}))
	// slug-folded
	assert.Equal(t, "memory1", r.Resolve(RawRecord{Title: "memory-rookie"}))
}

func TestResolver_NestedAchievementObject(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	raw := RawRecord{Nested: &RawRecord{Slug: "memory2"}}
	assert.Equal(t, "memory2", r.Resolve(raw))

	bare := RawRecord{Nested: &RawRecord{ID: "profile", ServerID: "profile"}}
	assert.Equal(t, "profile", r.Resolve(bare))
}

func TestResolver_ServerIDHintStability(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	// first sighting carries both ids — the hint cache learns the pairing
	got := r.Resolve(RawRecord{ID: "memory2", ServerID: "abc"})
	require.Equal(t, "memory2", got)

	// later sighting carries only the server id
	assert.Equal(t, "memory2", r.Resolve(RawRecord{ServerID: "abc"}))
}

func TestResolver_HintLearnedViaTitleMatch(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	require.Equal(t, "profile", r.Resolve(RawRecord{Title: "Looking Good!", ServerID: "srv-9"}))
	assert.Equal(t, "profile", r.Resolve(RawRecord{ServerID: "srv-9"}))
}

func TestResolver_BestEffortForUnknown(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	// unknown-but-real achievements are not silently dropped
	assert.Equal(t, "seasonal2026", r.Resolve(RawRecord{ID: "seasonal2026"}))
	assert.Equal(t, "mystery-slug", r.Resolve(RawRecord{Slug: "mystery-slug"}))
}

func TestResolver_NothingUsable(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	assert.Equal(t, "", r.Resolve(RawRecord{}))
}

func TestResolver_ObserveSeedsHints(t *testing.T) {
	r := NewIdentityResolver(testCatalog())

	r.Observe("memory1", "srv-1")
	assert.Equal(t, "memory1", r.Resolve(RawRecord{ServerID: "srv-1"}))
}
