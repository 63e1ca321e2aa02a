package auth

import (
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage"
)

// Open builds the cache, store, client and service over one storage repo.
// Call Restore on the result before use.
func Open(cfg config.ClientConfig, repo storage.Repo, options ...apiclient.Option) (*Service, *apiclient.Client, error) {
	creds, err := credentials.New(repo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[auth.Open] credentials.New")
	}
	store, err := sessions.New(repo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[auth.Open] sessions.New")
	}
	client, err := apiclient.New(cfg, creds, store, options...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[auth.Open] apiclient.New")
	}
	service, err := NewService(client, creds, store, WithLoginPath(cfg.GetLoginPath()))
	if err != nil {
		return nil, nil, err
	}
	return service, client, nil
}
