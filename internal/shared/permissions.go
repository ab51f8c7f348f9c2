package shared

// Permission names used by RBAC guards. Kept central so route wiring and
// seeds cannot drift apart.
const (
	PermMasterdataManage = "masterdata.manage"
	PermPricingManage    = "pricing.manage"
	PermAHSPManage       = "ahsp.manage"
	PermProjectView      = "project.view"
	PermProjectManage    = "project.manage"
	PermProjectRecalc    = "project.recalculate"
	PermUsersManage      = "users.manage"
)
