package grantrepofake

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-client/token/grants"
)

var _ grants.Repo = (*FakeGrantRepo)(nil)

type FakeGrantRepo struct {
	grants  map[string]*grants.Grant
	userIDs map[int64]string // user ID to token
	lock    sync.RWMutex
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		grants:  make(map[string]*grants.Grant),
		userIDs: make(map[int64]string),
	}
}

func (gr *FakeGrantRepo) Upsert(grant *grants.Grant) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	copied := *grant
	gr.grants[grant.Token] = &copied
	gr.userIDs[grant.UserID] = grant.Token
	return nil
}

func (gr *FakeGrantRepo) Delete(token string) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	grant, ok := gr.grants[token]
	if !ok {
		return errors.New("not found")
	}
	if gr.userIDs[grant.UserID] == token {
		delete(gr.userIDs, grant.UserID)
	}
	delete(gr.grants, token)
	return nil
}

func (gr *FakeGrantRepo) Get(token string) (*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()
	grant, ok := gr.grants[token]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *grant
	return &copied, nil
}

func (gr *FakeGrantRepo) GetByUserID(userID int64) (*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()
	token, ok := gr.userIDs[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *gr.grants[token]
	return &copied, nil
}
