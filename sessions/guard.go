package sessions

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/users"
)

var errMalformed = errors.New("malformed session envelope")

// HasStoredSession is the check used by route guards that only look at durable
// storage: true when the envelope decodes to an identity with a numeric user_id.
func HasStoredSession(ctx context.Context, repo storage.Repo) bool {
	identity, err := readEnvelope(ctx, repo)
	return err == nil && identity != nil
}

// readEnvelope returns (nil, nil) when nothing is stored and wraps errMalformed
// when the stored value cannot be trusted.
func readEnvelope(ctx context.Context, repo storage.Repo) (*users.Identity, error) {
	raw, err := repo.Get(ctx, UserStoreKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, storage.ErrCorrupt) {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	if err != nil {
		return nil, err
	}

	var envelope struct {
		State *struct {
			CurrentUser json.RawMessage `json:"currentUser"`
		} `json:"state"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	if envelope.State == nil {
		return nil, errors.Wrap(errMalformed, "missing state")
	}
	if len(envelope.State.CurrentUser) == 0 || string(envelope.State.CurrentUser) == "null" {
		return nil, nil
	}
	identity, err := users.Decode(envelope.State.CurrentUser)
	if err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	return identity, nil
}
