package integration

import "github.com/shopspring/decimal"

// Menu is the full menu pushed to a provider. A push replaces the provider's menu.
type Menu struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Currency   string         `json:"currency"`
	Categories []MenuCategory `json:"categories"`
}

// MenuCategory groups menu items
type MenuCategory struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// MenuItem is a sellable item. Price is in major currency units.
type MenuItem struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Available      bool            `json:"available"`
	ImageURL       string          `json:"image_url,omitempty"`
	ModifierGroups []ModifierGroup `json:"modifier_groups"`
}

// ModifierGroup is a set of options with selection bounds
type ModifierGroup struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	MinSelections int              `json:"min_selections"`
	MaxSelections int              `json:"max_selections"`
	Required      bool             `json:"required"`
	Options       []ModifierOption `json:"options"`
}

// ModifierOption is one selectable option inside a modifier group
type ModifierOption struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// MenuSyncResult reports the outcome of a menu push
type MenuSyncResult struct {
	// ItemMappings maps internal item IDs to provider item IDs
	ItemMappings map[string]string `json:"item_mappings"`
	ItemCount    int               `json:"item_count"`
}

// Items returns every item across all categories
func (m *Menu) Items() []MenuItem {
	var items []MenuItem
	for _, c := range m.Categories {
		items = append(items, c.Items...)
	}
	return items
}

// Validate checks that the menu can be pushed
func (m *Menu) Validate() error {
	if m == nil || len(m.Categories) == 0 {
		return ErrEmptyMenu
	}
	seen := make(map[string]struct{})
	for _, item := range m.Items() {
		if item.ID == "" {
			return ErrInvalidMenuItem
		}
		if item.Price.IsNegative() {
			return ErrInvalidMenuItem
		}
		if _, dup := seen[item.ID]; dup {
			return ErrDuplicateMenuItem
		}
		seen[item.ID] = struct{}{}
		for _, g := range item.ModifierGroups {
			if g.MaxSelections > 0 && g.MinSelections > g.MaxSelections {
				return ErrInvalidModifierGroup
			}
		}
	}
	return nil
}
