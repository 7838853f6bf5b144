// services/merger.go
package services

import (
	"achievement-sync-system/models"
)

// StateMerger produces the authoritative in-memory achievement list for a
// profile out of the catalog plus a (possibly partial, possibly stale) set of
// stored or remote records. Deterministic and idempotent:
// Merge(Merge(x)) == Merge(x).
type StateMerger struct {
	catalog  *Catalog
	resolver *IdentityResolver
}

func NewStateMerger(catalog *Catalog, resolver *IdentityResolver) *StateMerger {
	return &StateMerger{catalog: catalog, resolver: resolver}
}

// Merge runs the catalog pass over already-normalized records (local storage)
func (m *StateMerger) Merge(stored []models.AchievementRecord) []models.AchievementRecord {
	raws := make([]RawRecord, 0, len(stored))
	for _, rec := range stored {
		raws = append(raws, rawFromRecord(rec))
	}
	return m.MergeRaw(raws)
}

// MergeRaw merges records of any origin (remote snapshots arrive as RawRecord).
//
// For every enabled catalog definition: the output takes the definition's
// title/description/points as defaults but keeps the stored earned/dateEarned
// and a non-zero stored points override — remote-supplied point values win so a
// late catalog change doesn't retroactively rewrite already-earned totals.
// Stored records that match no definition but aren't deny-listed are appended
// as extras (achievement types a newer server knows and we don't yet).
// Disabled ids are dropped from both passes.
func (m *StateMerger) MergeRaw(raws []RawRecord) []models.AchievementRecord {
	byID := make(map[string]RawRecord, len(raws))
	order := make([]string, 0, len(raws))
	for _, raw := range raws {
		id := m.resolver.Resolve(raw)
		if id == "" {
			continue
		}
		if raw.serverID() != "" {
			m.resolver.Observe(id, raw.serverID())
		}
		if _, dup := byID[id]; dup {
			continue // id-unique: first occurrence wins
		}
		byID[id] = raw
		order = append(order, id)
	}

	out := make([]models.AchievementRecord, 0, len(byID)+8)
	seen := make(map[string]bool, len(byID))

	for _, def := range m.catalog.Enabled() {
		rec := models.AchievementRecord{
			ID:          def.ID,
			Slug:        def.ID,
			Title:       def.Title,
			Description: def.Description,
			Points:      def.Points,
		}
		if raw, ok := byID[def.ID]; ok {
			if raw.Slug != "" {
				rec.Slug = raw.Slug
			}
			rec.ServerID = raw.serverID()
			if raw.HasPoints && raw.Points != 0 {
				rec.Points = raw.Points
			}
			rec.Earned = raw.Earned
			if rec.Earned {
				rec.DateEarned = raw.DateEarned
			}
		}
		out = append(out, rec)
		seen[def.ID] = true
	}

	// extras pass — preserve unknown-but-enabled records in their arrival order
	for _, id := range order {
		if seen[id] || m.catalog.Has(id) || !m.catalog.IsEnabled(id) {
			continue
		}
		raw := byID[id]
		rec := models.AchievementRecord{
			ID:          id,
			Slug:        id,
			ServerID:    raw.serverID(),
			Title:       raw.Title,
			Description: raw.Description,
			Points:      raw.Points,
			Earned:      raw.Earned,
		}
		if raw.Slug != "" {
			rec.Slug = raw.Slug
		}
		if rec.Title == "" && raw.Nested != nil {
			rec.Title = raw.Nested.Title
		}
		if rec.Earned {
			rec.DateEarned = raw.DateEarned
		}
		out = append(out, rec)
		seen[id] = true
	}

	return out
}

// TotalPoints sums earned && enabled records — the invariant every reconciled
// profile must satisfy.
func TotalPoints(catalog *Catalog, records []models.AchievementRecord) int {
	total := 0
	for _, rec := range records {
		if rec.Earned && catalog.IsEnabled(rec.ID) {
			total += rec.Points
		}
	}
	return total
}

func rawFromRecord(rec models.AchievementRecord) RawRecord {
	return RawRecord{
		ID:          rec.ID,
		Slug:        rec.Slug,
		ServerID:    rec.ServerID,
		Title:       rec.Title,
		Description: rec.Description,
		Points:      rec.Points,
		HasPoints:   rec.Points != 0,
		Earned:      rec.Earned,
		DateEarned:  rec.DateEarned,
	}
}
