package apiclient

// Backend routes used by the session client.
const (
	LoginPath   = "/users/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
	MePath      = "/auth/me"
)

// Header and cookie names of the request contract.
const (
	CSRFCookieName  = "XSRF-TOKEN"
	CSRFHeader      = "X-CSRF-Token"
	RequestIDHeader = "X-Request-ID"
)
