package users

type AccountRepo interface {
	Upsert(account *Account) error
	GetByUsername(username string) (*Account, error)
	GetByID(id int64) (*Account, error)
}
