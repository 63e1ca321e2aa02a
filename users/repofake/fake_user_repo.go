package fakeuserrepo

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-client/users"
)

var _ users.AccountRepo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts  map[int64]*users.Account
	usernames map[string]int64 // normalized username to account id
	nextID    int64
	lock      sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts:  make(map[int64]*users.Account),
		usernames: make(map[string]int64),
		nextID:    1,
	}
}

func (ar *FakeAccountRepo) Upsert(account *users.Account) error {
	if account.Username == "" {
		return errors.New("username is required")
	}
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == 0 {
		account.ID = ar.nextID
	}
	if account.ID >= ar.nextID {
		ar.nextID = account.ID + 1
	}
	copied := *account
	ar.accounts[account.ID] = &copied
	ar.usernames[users.NormalizeUsername(account.Username)] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByUsername(username string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	id, ok := ar.usernames[users.NormalizeUsername(username)]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *ar.accounts[id]
	return &copied, nil
}

func (ar *FakeAccountRepo) GetByID(id int64) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	account, ok := ar.accounts[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *account
	return &copied, nil
}
