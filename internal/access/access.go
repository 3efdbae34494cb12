// Package access decides whether a client-side route may be shown. It only
// steers navigation; the API enforces roles on every request.
package access

const (
	LoginPath = "/login"
	HomePath  = "/"

	roleAdmin = "admin"
)

// Decision is the outcome of a route guard check.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Decide checks stored-token presence and, for admin routes, the stored role.
func Decide(hasToken bool, role string, requireAdmin bool) Decision {
	if !hasToken {
		return Decision{Redirect: LoginPath}
	}
	if requireAdmin && role != roleAdmin {
		return Decision{Redirect: HomePath}
	}
	return Decision{Allowed: true}
}
