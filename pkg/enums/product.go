package enums

import "fmt"

// ProductCategory distinguishes pre-made stock from per-order production.
type ProductCategory string

const (
	// ProductCategoryStocked products are built ahead of demand in batches.
	ProductCategoryStocked ProductCategory = "stocked"
	// ProductCategoryMadeToOrder products get a production job per accepted line.
	ProductCategoryMadeToOrder ProductCategory = "made_to_order"
)

var validProductCategories = []ProductCategory{
	ProductCategoryStocked,
	ProductCategoryMadeToOrder,
}

func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// RequiresProduction reports whether accepting a line for this category spawns a job.
func (c ProductCategory) RequiresProduction() bool {
	return c != ProductCategoryStocked
}

// ParseProductCategory converts raw input into ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
