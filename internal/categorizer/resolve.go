package categorizer

import "github.com/dvloznov/budget-companion/internal/domain"

// ResolveCategoryID maps a category name to its catalog id. Unknown names
// resolve to the id of "Other"; nil means the catalog has neither.
func ResolveCategoryID(name string, categories []domain.Category) *int64 {
	if id, ok := findCategoryID(name, categories); ok {
		return &id
	}
	if id, ok := findCategoryID(domain.OtherCategory, categories); ok {
		return &id
	}
	return nil
}

func findCategoryID(name string, categories []domain.Category) (int64, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c.ID, true
		}
	}
	return 0, false
}
