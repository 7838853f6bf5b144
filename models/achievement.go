package models

import (
	"time"
)

// AchievementDefinition: static catalog entry (loaded from config JSON or R2)
type AchievementDefinition struct {
	ID          string `json:"id"`          // canonical local id, stable across app versions
	Title       string `json:"title"`       // "Memory Master"
	Description string `json:"description"`
	Points      int    `json:"points"`      // non-negative weight
	IconURL     string `json:"icon_url,omitempty"`
}

// AchievementRecord: per-profile mutable state for one achievement.
// Invariant: Earned == false ⇒ DateEarned == nil (normalized by the merger).
type AchievementRecord struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`                 // display/alternate identifier, defaults to ID
	ServerID    string     `json:"server_id,omitempty"`  // opaque remote id, set once the remote record is seen
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Earned      bool       `json:"earned"`
	DateEarned  *time.Time `json:"date_earned,omitempty"`
}

// Notification: one "just earned" event, persisted so the SSE stream can replay it
type Notification struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserKey       string    `gorm:"index;not null" json:"user_key"` // profile storage key (guest or user:<id>)
	AchievementID string    `gorm:"not null" json:"achievement_id"`
	Title         string    `json:"title"`
	Points        int       `json:"points"`
	EarnedAt      time.Time `json:"earned_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// GameKind identifies which game reported a completed level
type GameKind string

const (
	GameMemory   GameKind = "memory"
	GamePuzzle   GameKind = "puzzle"
	GameQuiz     GameKind = "quiz"
	GameColoring GameKind = "coloring"
)

// GameAchievements maps a game kind to its per-level achievement ids (index 0 = level 1)
var GameAchievements = map[GameKind][]string{
	GameMemory:   {"memory1", "memory2", "memory3"},
	GamePuzzle:   {"puzzle1", "puzzle2", "puzzle3"},
	GameQuiz:     {"quiz1", "quiz2", "quiz3"},
	GameColoring: {"coloring"},
}

// ChainedGames: kinds whose tiers unlock cumulatively — finishing level 3
// implies levels 1 and 2, so all three ids get granted in order.
var ChainedGames = map[GameKind]bool{
	GameMemory: true,
	GamePuzzle: true,
}

// DefaultCatalog: built-in definitions used when no catalog file/object is configured
var DefaultCatalog = []AchievementDefinition{
	{
		ID:          "profile",
		Title:       "Looking Good!",
		Description: "Finished setting up your profile",
		Points:      10,
	},
	{
		ID:          "memory1",
		Title:       "Memory Rookie",
		Description: "Completed the memory game on easy",
		Points:      20,
	},
	{
		ID:          "memory2",
		Title:       "Memory Pro",
		Description: "Completed the memory game on medium",
		Points:      30,
	},
	{
		ID:          "memory3",
		Title:       "Memory Master",
		Description: "Completed the memory game on hard",
		Points:      50,
	},
	{
		ID:          "puzzle1",
		Title:       "Puzzle Rookie",
		Description: "Completed your first puzzle",
		Points:      20,
	},
	{
		ID:          "puzzle2",
		Title:       "Puzzle Pro",
		Description: "Completed a medium puzzle",
		Points:      30,
	},
	{
		ID:          "puzzle3",
		Title:       "Puzzle Master",
		Description: "Completed a hard puzzle",
		Points:      50,
	},
	{
		ID:          "quiz1",
		Title:       "Quiz Starter",
		Description: "Finished an easy quiz",
		Points:      15,
	},
	{
		ID:          "quiz2",
		Title:       "Quiz Whiz",
		Description: "Finished a medium quiz",
		Points:      25,
	},
	{
		ID:          "quiz3",
		Title:       "Quiz Champion",
		Description: "Finished a hard quiz",
		Points:      40,
	},
	{
		ID:          "coloring",
		Title:       "Little Artist",
		Description: "Saved your first drawing",
		Points:      15,
	},
}
