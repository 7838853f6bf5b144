package models

import (
	"time"

	"gorm.io/gorm"
)

const GuestStorageKey = "guest"

// Profile is the caller-owned aggregate handed in and out of the engine.
// Identifier == nil means a guest/local-only profile — those never touch the network.
type Profile struct {
	Identifier   *string             `json:"identifier,omitempty"`
	TotalPoints  int                 `json:"total_points"`
	Achievements []AchievementRecord `json:"achievements"`
}

// StorageKey: guest and registered profiles are persisted under separate keys
func (p *Profile) StorageKey() string {
	if p.Identifier == nil || *p.Identifier == "" {
		return GuestStorageKey
	}
	return "user:" + *p.Identifier
}

func (p *Profile) IsGuest() bool {
	return p.Identifier == nil || *p.Identifier == ""
}

// Clone makes a deep copy — the grant coordinator keeps one around so it can
// roll back to the pre-grant state without re-reading storage.
func (p *Profile) Clone() *Profile {
	out := &Profile{TotalPoints: p.TotalPoints}
	if p.Identifier != nil {
		id := *p.Identifier
		out.Identifier = &id
	}
	out.Achievements = make([]AchievementRecord, len(p.Achievements))
	copy(out.Achievements, p.Achievements)
	for i := range out.Achievements {
		if p.Achievements[i].DateEarned != nil {
			t := *p.Achievements[i].DateEarned
			out.Achievements[i].DateEarned = &t
		}
	}
	return out
}

// ProfileSnapshot is the persisted form of a Profile (one row per storage key).
// The achievement list is stored as a JSON column — the engine always replaces
// it wholesale, never patches individual entries.
type ProfileSnapshot struct {
	Key          string              `gorm:"primaryKey" json:"key"`
	Identifier   *string             `json:"identifier,omitempty"`
	TotalPoints  int                 `gorm:"default:0" json:"total_points"`
	Achievements []AchievementRecord `gorm:"serializer:json" json:"achievements"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
