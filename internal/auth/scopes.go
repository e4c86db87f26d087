package auth

// Scopes understood by the growth API.
const (
	ScopeGrowthRead  = "growth:read"
	ScopeGrowthWrite = "growth:write"
)
