package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zms-erp/ledgertree/models"
)

type categoriesFile struct {
	Categories []models.CategoryDef `yaml:"categories"`
}

// LoadCategories reads category definitions from a YAML file. An empty path
// returns the defaults. Entries in the file override the default of the same
// category; unknown categories are rejected.
func LoadCategories(path string) ([]models.CategoryDef, error) {
	defs := append([]models.CategoryDef(nil), models.DefaultCategories...)
	if path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading categories file: %w", err)
	}
	return ParseCategories(data)
}

// ParseCategories parses YAML category definitions over the defaults
func ParseCategories(data []byte) ([]models.CategoryDef, error) {
	defs := append([]models.CategoryDef(nil), models.DefaultCategories...)

	var file categoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing categories file: %w", err)
	}

	listIDs := make(map[string]models.Category)
	for _, override := range file.Categories {
		idx := -1
		for i, def := range defs {
			if def.Category == override.Category {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", override.Category)}
		}
		if override.Resource != "" {
			defs[idx].Resource = override.Resource
		}
		if override.HeaderListID != "" {
			defs[idx].HeaderListID = override.HeaderListID
		}
		if override.HeaderLabel != "" {
			defs[idx].HeaderLabel = override.HeaderLabel
		}
	}

	for _, def := range defs {
		if other, dup := listIDs[def.HeaderListID]; dup {
			return nil, &ValidationError{
				Field:   "headerListId",
				Message: fmt.Sprintf("%s and %s share header list id %q", other, def.Category, def.HeaderListID),
			}
		}
		listIDs[def.HeaderListID] = def.Category
	}
	return defs, nil
}
