package models

// Category is one of the five top-level sections of the chart of accounts.
type Category string

const (
	CategoryAssets      Category = "assets"
	CategoryLiabilities Category = "liabilities"
	CategoryCapital     Category = "capital"
	CategoryRevenue     Category = "revenue"
	CategoryExpenses    Category = "expenses"
)

// CategoryDef binds a category to its backend resource and its header.
type CategoryDef struct {
	Category     Category `yaml:"category" json:"category"`
	Resource     string   `yaml:"resource" json:"resource"`
	HeaderListID string   `yaml:"headerListId" json:"headerListId"`
	HeaderLabel  string   `yaml:"headerLabel" json:"headerLabel"`
}

// DefaultCategories lists the categories in ledger order.
var DefaultCategories = []CategoryDef{
	{Category: CategoryAssets, Resource: "assets", HeaderListID: "1", HeaderLabel: "Assets"},
	{Category: CategoryLiabilities, Resource: "liabilities", HeaderListID: "2", HeaderLabel: "Liabilities"},
	{Category: CategoryCapital, Resource: "capital-account", HeaderListID: "3", HeaderLabel: "Capital"},
	{Category: CategoryRevenue, Resource: "revenue", HeaderListID: "4", HeaderLabel: "Revenue"},
	{Category: CategoryExpenses, Resource: "expenses", HeaderListID: "5", HeaderLabel: "Expenses"},
}

// LookupCategory finds the definition for c in defs.
func LookupCategory(defs []CategoryDef, c Category) (CategoryDef, bool) {
	for _, def := range defs {
		if def.Category == c {
			return def, true
		}
	}
	return CategoryDef{}, false
}
