package items

// ItemCategory classifies a base item by resource kind.
type ItemCategory string

const (
	CategoryMaterial  ItemCategory = "material"
	CategoryLabor     ItemCategory = "labor"
	CategoryEquipment ItemCategory = "equipment"
)

// Valid reports whether the category is one of the three known kinds.
func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryMaterial, CategoryLabor, CategoryEquipment:
		return true
	}
	return false
}

// Item is an atomic priceable resource referenced by composition entries.
// Once any composition references it the item becomes immutable.
type Item struct {
	ID       int64        `json:"id"`
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Category ItemCategory `json:"category"`
	UnitID   int64        `json:"unit_id"`
	UnitCode string       `json:"unit_code,omitempty"`
}
