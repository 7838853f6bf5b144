// services/chain.go
package services

import (
	"achievement-sync-system/models"
)

// ChainResolver expands a (game, reached level) pair into the ordered sequence
// of achievement ids to grant. Chained games unlock cumulatively: reaching
// level 3 implies levels 1 and 2, so a player jumping straight to hard still
// gets credit for the lower tiers.
type ChainResolver struct {
	games   map[models.GameKind][]string
	chained map[models.GameKind]bool
}

func NewChainResolver() *ChainResolver {
	return &ChainResolver{
		games:   models.GameAchievements,
		chained: models.ChainedGames,
	}
}

// IDsForGrant returns the ids in grant order. Non-chained games map 1:1 to a
// single id per level; chained games return the full prefix [1..level].
func (r *ChainResolver) IDsForGrant(kind models.GameKind, reachedLevel int) []string {
	ids, ok := r.games[kind]
	if !ok || reachedLevel < 1 {
		return nil
	}
	if reachedLevel > len(ids) {
		reachedLevel = len(ids)
	}

	if r.chained[kind] {
		out := make([]string, reachedLevel)
		copy(out, ids[:reachedLevel])
		return out
	}
	return []string{ids[reachedLevel-1]}
}
