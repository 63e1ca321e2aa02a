package server

// Route path constants
// All backend routes are defined here to ensure consistency and prevent typos
const (
	// Session routes
	RouteUsersLogin  = "/users/login"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthLogout  = "/auth/logout"
	RouteAuthMe      = "/auth/me"

	// Protected resources
	RouteShoes = "/shoes"

	// Health
	RouteHealth = "/healthz"
)
