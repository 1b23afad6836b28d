//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"say-hi/domain"
	"say-hi/errors"
)

type IUserRepository interface {
	Create(u domain.User) error
	GetByEmail(email string) (domain.User, error)
	GetByID(id string) (domain.User, error)
	SetStatus(email string, status domain.Status) error
}

// UserRepository stores users under "user:{email}" with a secondary
// "userid:{id}" index pointing back at the email, so both lookup paths stay
// single-key reads.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log}
}

func userKey(email string) []byte { return []byte("user:" + email) }
func userIDKey(id string) []byte  { return []byte("userid:" + id) }

func (r UserRepository) Create(u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(u.Email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(u.Email), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(u.ID), []byte(u.Email))
	})
}

func (r UserRepository) GetByEmail(email string) (domain.User, error) {
	var u domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		return getUser(txn, email, &u)
	})
	return u, err
}

func (r UserRepository) GetByID(id string) (domain.User, error) {
	var u domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(email []byte) error {
			return getUser(txn, string(email), &u)
		})
	})
	return u, err
}

// SetStatus is used by OTP verification to activate a pending account.
func (r UserRepository) SetStatus(email string, status domain.Status) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var u domain.User
		if err := getUser(txn, email, &u); err != nil {
			return err
		}
		u.Status = status
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return txn.Set(userKey(email), data)
	})
}

func getUser(txn *badger.Txn, email string, u *domain.User) error {
	item, err := txn.Get(userKey(email))
	if err == badger.ErrKeyNotFound {
		return errors.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, u)
	})
}
