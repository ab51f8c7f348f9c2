package units

// Unit represents a unit of measure (m, m2, m3, kg, OH, jam).
type Unit struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
