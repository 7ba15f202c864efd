package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// ComponentCatalog is the body of GET /api/v1/all: category -> component name ->
// component definition. Definitions stay opaque.
type ComponentCatalog map[string]map[string]json.RawMessage

type ComponentSummary struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

type ComponentDetail struct {
	ComponentSummary
	Definition json.RawMessage `json:"definition"`
}

type ComponentListResponse struct {
	Components []ComponentSummary `json:"components"`
	Count      int                `json:"count"`
}

type componentMeta struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func summarize(category, name string, raw json.RawMessage) ComponentSummary {
	var meta componentMeta
	// Definitions vary across Langflow releases; missing metadata is not an error.
	_ = json.Unmarshal(raw, &meta)
	return ComponentSummary{
		Name:        name,
		Category:    category,
		DisplayName: meta.DisplayName,
		Description: meta.Description,
	}
}

// Summaries lists the catalog sorted by category then name. An empty category
// matches all; search matches name or display name case-insensitively.
func (c ComponentCatalog) Summaries(category, search string) []ComponentSummary {
	search = strings.ToLower(strings.TrimSpace(search))
	out := []ComponentSummary{}
	for cat, components := range c {
		if category != "" && !strings.EqualFold(cat, category) {
			continue
		}
		for name, raw := range components {
			s := summarize(cat, name, raw)
			if search != "" &&
				!strings.Contains(strings.ToLower(s.Name), search) &&
				!strings.Contains(strings.ToLower(s.DisplayName), search) {
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Find looks a component up by name, optionally restricted to one category.
// When the name exists in several categories the alphabetically first wins.
func (c ComponentCatalog) Find(name, category string) (*ComponentDetail, bool) {
	categories := make([]string, 0, len(c))
	for cat := range c {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		if category != "" && !strings.EqualFold(cat, category) {
			continue
		}
		if raw, ok := c[cat][name]; ok {
			return &ComponentDetail{ComponentSummary: summarize(cat, name, raw), Definition: raw}, true
		}
	}
	return nil, false
}
