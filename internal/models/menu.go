package models

// MenuItem represents a dish or drink on the menu as sent by the backend.
// Items are treated as immutable once received: the store deep-copies them on
// write so presentation code can never corrupt the shared catalog.
type MenuItem struct {
	ID          string            `json:"id"`
	Price       float64           `json:"price"`
	Name        map[string]string `json:"name"`
	Category    MenuCategory      `json:"category,omitempty"`
	Image       string            `json:"image,omitempty"`
	Quantity    StockLevel        `json:"quantity,omitempty"`
	Ingredients []string          `json:"ingredients,omitempty"`
	Supplements []Supplement      `json:"supplements,omitempty"`
}

// MenuCategory groups menu items for display.
type MenuCategory struct {
	ID   string            `json:"id,omitempty"`
	Name map[string]string `json:"name,omitempty"`
}

// StockLevel is the backend's stock signal for a menu item.
type StockLevel struct {
	Infinite bool `json:"infinite,omitempty"`
	Amount   int  `json:"amount,omitempty"`
}

// Supplement is an optional paid addition to a menu item.
type Supplement struct {
	ID    string            `json:"id"`
	Name  map[string]string `json:"name,omitempty"`
	Price float64           `json:"price"`
}

// Ingredient resolves ingredient ids in order modifications to display names.
type Ingredient struct {
	ID   string            `json:"id"`
	Name map[string]string `json:"name"`
}

// Clone returns a deep copy of the menu item.
func (mi MenuItem) Clone() MenuItem {
	out := mi
	out.Name = cloneStringMap(mi.Name)
	out.Category.Name = cloneStringMap(mi.Category.Name)
	out.Ingredients = cloneStrings(mi.Ingredients)
	if mi.Supplements != nil {
		out.Supplements = make([]Supplement, len(mi.Supplements))
		for i, s := range mi.Supplements {
			s.Name = cloneStringMap(s.Name)
			out.Supplements[i] = s
		}
	}
	return out
}

// CloneMenu deep-copies a full menu snapshot.
func CloneMenu(items []MenuItem) []MenuItem {
	if items == nil {
		return nil
	}
	out := make([]MenuItem, len(items))
	for i, mi := range items {
		out[i] = mi.Clone()
	}
	return out
}

// Clone returns a deep copy of the ingredient.
func (in Ingredient) Clone() Ingredient {
	out := in
	out.Name = cloneStringMap(in.Name)
	return out
}

// CloneIngredients deep-copies a full ingredient catalog.
func CloneIngredients(list []Ingredient) []Ingredient {
	if list == nil {
		return nil
	}
	out := make([]Ingredient, len(list))
	for i, in := range list {
		out[i] = in.Clone()
	}
	return out
}
