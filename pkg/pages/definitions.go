// Package pages holds the tab layouts of the production-tracking pages and
// the Session that wires a page's presenter and controller to the shared
// store, bus and tracker.
package pages

import (
	"sort"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/pkg/presenter"
)

// Definition is the static layout of one page.
type Definition struct {
	Name  string
	Title string
	Mode  presenter.Mode
	Tabs  []presenter.TabConfig
}

// Defaults returns the built-in page layouts.
func Defaults() map[string]Definition {
	return map[string]Definition{
		"ingredients": {
			Name:  "ingredients",
			Title: "Ingredients",
			Mode:  presenter.Hierarchical,
			Tabs: []presenter.TabConfig{
				{Label: "Types", ListEvent: "ingrTypeList", KeyField: "ingrTypeID", SelectionKey: "ingrType",
					Columns: []string{"ingrTypeName", "description"}},
				{Label: "Ingredients", ListEvent: "ingredientList", KeyField: "ingredientID", ParentKey: "ingrTypeID", SelectionKey: "ingredient",
					Columns: []string{"ingredientName", "vendor", "unit"}},
				{Label: "Batches", ListEvent: "ingrBatchList", KeyField: "batchID", ParentKey: "ingredientID", SelectionKey: "batch",
					Columns: []string{"lotNumber", "purchaseDate", "quantity", "unit"}},
			},
		},
		"products": {
			Name:  "products",
			Title: "Products",
			Mode:  presenter.Hierarchical,
			Tabs: []presenter.TabConfig{
				{Label: "Types", ListEvent: "prodTypeList", KeyField: "prodTypeID", SelectionKey: "prodType",
					Columns: []string{"prodTypeName"}},
				{Label: "Products", ListEvent: "productList", KeyField: "productID", ParentKey: "prodTypeID", SelectionKey: "product",
					Columns: []string{"productName", "recipeName", "yield"}},
				{Label: "Batches", ListEvent: "prodBatchList", KeyField: "prodBatchID", ParentKey: "productID", SelectionKey: "prodBatch",
					Columns: []string{"batchNumber", "productionDate", "quantity"}},
			},
		},
		"recipes": {
			Name:  "recipes",
			Title: "Recipes",
			Mode:  presenter.Flat,
			Tabs: []presenter.TabConfig{
				{Label: "Recipes", ListEvent: "recipeList", KeyField: "recipeID", SelectionKey: "recipe",
					Columns: []string{"recipeName", "productName", "yield"}},
				{Label: "Steps", ListEvent: "recipeStepList", KeyField: "stepID", SelectionKey: "step",
					Columns: []string{"stepNumber", "instruction"}},
			},
		},
		"batches": {
			Name:  "batches",
			Title: "Batch Mapping",
			Mode:  presenter.Flat,
			Tabs: []presenter.TabConfig{
				{Label: "Product Batches", ListEvent: "prodBatchList", KeyField: "prodBatchID", SelectionKey: "prodBatch",
					Columns: []string{"batchNumber", "productName", "productionDate"}},
				{Label: "Ingredient Batches", ListEvent: "ingrBatchList", KeyField: "batchID", SelectionKey: "ingrBatch",
					Columns: []string{"lotNumber", "ingredientName"}},
			},
		},
	}
}

// Resolve applies configured pages on top of the defaults. A configured page
// replaces the default layout of the same name wholesale; new names add
// pages.
func Resolve(pages map[string]config.PageConfig) map[string]Definition {
	defs := Defaults()
	for name, pc := range pages {
		title := name
		if d, ok := defs[name]; ok {
			title = d.Title
		}
		defs[name] = Definition{
			Name:  name,
			Title: title,
			Mode:  presenter.ModeFor(pc.Mode),
			Tabs:  append([]presenter.TabConfig(nil), pc.Tabs...),
		}
	}
	return defs
}

// Names returns the sorted page names of defs.
func Names(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
