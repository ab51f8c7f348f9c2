package regions

// Region scopes a price list. Projects bind to one region and snapshot
// its prices at creation.
type Region struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Province string `json:"province"`
}
