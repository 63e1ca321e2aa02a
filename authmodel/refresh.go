package authmodel

// RefreshRequest is posted to the refresh endpoint when a refresh token is held.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the refresh endpoint's reply. RefreshToken is optional;
// when empty the previous refresh token stays in use.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// MeResponse is the current-user payload returned by the backend.
type MeResponse struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	Role     *string `json:"role"`
}

// ErrorResponse is the error body written by the reference backend.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
