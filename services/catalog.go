// services/catalog.go
package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"achievement-sync-system/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
)

// foldText case-folds for lookups. Casers are stateful, so one is built per
// call instead of shared across goroutines.
func foldText(s string) string {
	return cases.Fold().String(s)
}

// Catalog holds the known achievement definitions plus the enablement deny-list.
// It can be swapped wholesale at runtime (admin reload, R2 refresh job), so all
// reads go through the lock.
type Catalog struct {
	mu       sync.RWMutex
	defs     []models.AchievementDefinition
	byID     map[string]models.AchievementDefinition
	byTitle  map[string]string // case-folded title → id
	bySlug   map[string]string // slugified title → id
	disabled map[string]bool   // deny-list; unknown ids are enabled by default
}

func NewCatalog(defs []models.AchievementDefinition, disabledIDs []string) *Catalog {
	c := &Catalog{}
	c.Replace(defs, disabledIDs)
	return c
}

// Replace swaps the whole definition set atomically (used by the refresh scheduler)
func (c *Catalog) Replace(defs []models.AchievementDefinition, disabledIDs []string) {
	byID := make(map[string]models.AchievementDefinition, len(defs))
	byTitle := make(map[string]string, len(defs))
	bySlug := make(map[string]string, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
		if d.Title != "" {
			byTitle[foldText(d.Title)] = d.ID
			bySlug[slug.Make(d.Title)] = d.ID
		}
	}
	disabled := make(map[string]bool, len(disabledIDs))
	for _, id := range disabledIDs {
		disabled[id] = true
	}

	c.mu.Lock()
	c.defs = defs
	c.byID = byID
	c.byTitle = byTitle
	c.bySlug = bySlug
	c.disabled = disabled
	c.mu.Unlock()
}

// Enabled returns the enablement-filtered definitions in catalog order
func (c *Catalog) Enabled() []models.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.AchievementDefinition, 0, len(c.defs))
	for _, d := range c.defs {
		if !c.disabled[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) Get(id string) (models.AchievementDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// IsEnabled: disabled ids never appear anywhere and never count toward totals.
// Ids the catalog doesn't know ("extras" from a newer server) stay enabled
// unless explicitly deny-listed.
func (c *Catalog) IsEnabled(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled[id]
}

// IDForTitle looks up a definition by exact title (case-folded)
func (c *Catalog) IDForTitle(title string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.byTitle[foldText(title)]; ok {
		return id, true
	}
	id, ok := c.bySlug[slug.Make(title)]
	return id, ok
}

// PointsFor returns the configured point value, 0 for unknown ids
func (c *Catalog) PointsFor(id string) int {
	d, ok := c.Get(id)
	if !ok {
		return 0
	}
	return d.Points
}

// catalogFile is the on-disk / R2 JSON shape
type catalogFile struct {
	Achievements []models.AchievementDefinition `json:"achievements"`
	Disabled     []string                       `json:"disabled,omitempty"`
}

// ParseCatalog decodes a catalog JSON payload (local file or R2 object)
func ParseCatalog(data []byte) ([]models.AchievementDefinition, []string, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	if len(f.Achievements) == 0 {
		return nil, nil, fmt.Errorf("catalog JSON contains no achievements")
	}
	return f.Achievements, f.Disabled, nil
}

// LoadCatalogFromFile reads a catalog JSON file from disk
func LoadCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	defs, disabled, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs, disabled), nil
}
