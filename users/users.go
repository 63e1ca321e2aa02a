package users

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// Identity is the authenticated user tracked by the session store.
// Field order matches the persisted JSON: {"role":…,"user_id":…,"username":…}.
type Identity struct {
	Role     *string `json:"role"`
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
}

// ValidationError reports an identity that must not be persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session identity: %s %s", e.Field, e.Reason)
}

// Is lets callers match any ValidationError with errors.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == sessionerrors.ErrValidation
}

// Validate checks the identity invariant: positive user id and non-empty username.
func (i Identity) Validate() error {
	if i.UserID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be a positive integer"}
	}
	if i.Username == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	return nil
}

// Equal reports whether two identities hold the same fields.
func (i Identity) Equal(other Identity) bool {
	return i.UserID == other.UserID && i.Username == other.Username && utils.Equal(i.Role, other.Role)
}

// Patch is a partial identity update. Nil fields are left unchanged; ClearRole
// sets the role to null.
type Patch struct {
	UserID    *int64
	Username  *string
	Role      *string
	ClearRole bool
}

// Merge applies p over i. The result is not validated.
func (i Identity) Merge(p Patch) Identity {
	next := i
	if p.UserID != nil {
		next.UserID = *p.UserID
	}
	if p.Username != nil {
		next.Username = *p.Username
	}
	if p.ClearRole {
		next.Role = nil
	} else if p.Role != nil {
		next.Role = utils.Ptr(*p.Role)
	}
	return next
}

// FromPayload normalises the user object returned by the login endpoint. The
// user may be nested under "user" or flattened into the top level; the id is
// taken from "user_id" or "id" and coerced to a number, the username to a string.
// The result is not validated.
func FromPayload(payload map[string]any) Identity {
	raw := payload
	if nested, ok := payload["user"].(map[string]any); ok {
		raw = nested
	}

	idValue := raw["user_id"]
	if idValue == nil {
		idValue = raw["id"]
	}
	userID, _ := utils.ToInt64(idValue)

	var role *string
	if r, ok := raw["role"]; ok && r != nil {
		role = utils.Ptr(utils.ToString(r))
	}

	return Identity{
		Role:     role,
		UserID:   userID,
		Username: utils.ToString(raw["username"]),
	}
}

// Decode reads a persisted identity strictly: user_id must be a JSON number
// holding a positive integer, username a non-empty string, role a string or null.
func Decode(data json.RawMessage) (*Identity, error) {
	var raw struct {
		Role     any `json:"role"`
		UserID   any `json:"user_id"`
		Username any `json:"username"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	id, ok := raw.UserID.(float64)
	if !ok {
		return nil, &ValidationError{Field: "user_id", Reason: "must be a number"}
	}
	userID, ok := utils.ToInt64(id)
	if !ok {
		return nil, &ValidationError{Field: "user_id", Reason: "must be an integer"}
	}
	username, ok := raw.Username.(string)
	if !ok {
		return nil, &ValidationError{Field: "username", Reason: "must be a string"}
	}
	var role *string
	switch r := raw.Role.(type) {
	case nil:
	case string:
		role = utils.Ptr(r)
	default:
		return nil, &ValidationError{Field: "role", Reason: "must be a string or null"}
	}

	identity := &Identity{Role: role, UserID: userID, Username: username}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}

// Account is a user record held by the reference backend.
type Account struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Role         *string `json:"role"`
	PasswordHash string  `json:"-"` // never serialize
}

// Identity projects the account onto the session identity shape.
func (a *Account) Identity() Identity {
	return Identity{Role: a.Role, UserID: a.ID, Username: a.Username}
}

// NormalizeUsername folds usernames for lookups.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
