package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityAdmin                       // Access token of a user flagged is_admin
)

// EndpointSecurityConfig maps "METHOD route-template" to the required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"GET /health": SecurityPublic,

	// Ledger
	"GET /api/balance": SecurityAccess,
	"GET /api/ledger":  SecurityAccess,

	// Orders
	"GET /api/orders":  SecurityAccess,
	"POST /api/orders": SecurityAccess,

	// Admin
	"GET /api/admin/orders":              SecurityAdmin,
	"PATCH /api/admin/orders/{id}":       SecurityAdmin,
	"GET /api/admin/users/{id}/balance":  SecurityAdmin,
	"POST /api/admin/users/{id}/payouts": SecurityAdmin,
	"POST /api/admin/payouts/revoke":     SecurityAdmin,
	"POST /api/admin/grants/plan":        SecurityAdmin,
}

// GetSecurityLevel returns the security level for a route
func GetSecurityLevel(method, routeTemplate string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+routeTemplate]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
