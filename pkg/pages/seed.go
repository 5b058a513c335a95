package pages

import "github.com/grovetools/prodtrack/pkg/fetch"

// SampleData returns a small production dataset for the built-in pages,
// keyed by list query. It backs the demo command and tests.
func SampleData() map[string][]fetch.Row {
	return map[string][]fetch.Row{
		"ingrTypeList": {
			{"ingrTypeID": 7, "ingrTypeName": "Dairy", "description": "Milk and cream"},
			{"ingrTypeID": 8, "ingrTypeName": "Grains", "description": "Flours and meals"},
		},
		"ingredientList": {
			{"ingredientID": 101, "ingrTypeID": 7, "ingredientName": "Whole Milk", "vendor": "Valley Farms", "unit": "l"},
			{"ingredientID": 102, "ingrTypeID": 7, "ingredientName": "Heavy Cream", "vendor": "Valley Farms", "unit": "l"},
			{"ingredientID": 201, "ingrTypeID": 8, "ingredientName": "Rye Flour", "vendor": "Stone Mill", "unit": "kg"},
		},
		"ingrBatchList": {
			{"batchID": 5001, "ingredientID": 101, "lotNumber": "VF-2291", "purchaseDate": "2026-09-30", "quantity": 40, "unit": "l", "ingredientName": "Whole Milk"},
			{"batchID": 5002, "ingredientID": 102, "lotNumber": "VF-2304", "purchaseDate": "2026-10-02", "quantity": 12, "unit": "l", "ingredientName": "Heavy Cream"},
			{"batchID": 5003, "ingredientID": 201, "lotNumber": "SM-118", "purchaseDate": "2026-10-05", "quantity": 25, "unit": "kg", "ingredientName": "Rye Flour"},
		},
		"prodTypeList": {
			{"prodTypeID": 1, "prodTypeName": "Cheese"},
			{"prodTypeID": 2, "prodTypeName": "Bread"},
		},
		"productList": {
			{"productID": 11, "prodTypeID": 1, "productName": "Farmhouse Cheddar", "recipeName": "Cheddar v3", "yield": 4},
			{"productID": 21, "prodTypeID": 2, "productName": "Dark Rye", "recipeName": "Rye Sourdough", "yield": 12},
		},
		"prodBatchList": {
			{"prodBatchID": 9001, "productID": 11, "batchNumber": "CH-0412", "productName": "Farmhouse Cheddar", "productionDate": "2026-10-08", "quantity": 4},
			{"prodBatchID": 9002, "productID": 21, "batchNumber": "RY-0077", "productName": "Dark Rye", "productionDate": "2026-10-09", "quantity": 12},
		},
		"recipeList": {
			{"recipeID": 31, "recipeName": "Cheddar v3", "productName": "Farmhouse Cheddar", "yield": 4},
			{"recipeID": 32, "recipeName": "Rye Sourdough", "productName": "Dark Rye", "yield": 12},
		},
		"recipeStepList": {
			{"stepID": 1, "recipeID": 31, "stepNumber": 1, "instruction": "Warm milk to 31C"},
			{"stepID": 2, "recipeID": 31, "stepNumber": 2, "instruction": "Add culture and rennet"},
			{"stepID": 3, "recipeID": 32, "stepNumber": 1, "instruction": "Feed starter"},
		},
	}
}
