package grants

import (
	"time"
)

// Grant is the backend's record of an issued refresh token. The client only
// ever sees Token.
type Grant struct {
	Token  string
	UserID int64
	Iat    time.Time
}

// Repo stores grants keyed by token, one live grant per user.
type Repo interface {
	Upsert(grant *Grant) error
	Delete(token string) error
	Get(token string) (*Grant, error)
	GetByUserID(userID int64) (*Grant, error)
}
