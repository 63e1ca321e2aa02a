package server

import (
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/users"
)

// SeedAccount hashes password and stores the account.
func SeedAccount(accounts users.AccountRepo, id int64, username, password string, role *string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[SeedAccount] HashPassword")
	}
	return accounts.Upsert(&users.Account{
		ID:           id,
		Username:     username,
		Role:         role,
		PasswordHash: hash,
	})
}
