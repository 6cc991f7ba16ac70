package auth

import (
	"context"
	"errors"
	"fmt"

	"structura/apperr"
	"structura/models"

	"gorm.io/gorm"
)

// AccountStore finds one account variant by email. It returns
// apperr.ErrAuthNotFound when the store has no such email.
type AccountStore interface {
	Kind() models.AccountKind
	FindByEmail(ctx context.Context, email string) (models.Account, error)
}

type accountRecord[T any] interface {
	*T
	models.Account
}

type gormStore[T any, PT accountRecord[T]] struct {
	db   *gorm.DB
	kind models.AccountKind
}

func (s gormStore[T, PT]) Kind() models.AccountKind { return s.kind }

func (s gormStore[T, PT]) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	rec := PT(new(T))
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).Take(rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrAuthNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s account: %w", s.kind, err)
	}
	return rec, nil
}

func NewUserStore(db *gorm.DB) AccountStore {
	return gormStore[models.User, *models.User]{db: db, kind: models.KindUser}
}

func NewSupervisorStore(db *gorm.DB) AccountStore {
	return gormStore[models.Supervisor, *models.Supervisor]{db: db, kind: models.KindSupervisor}
}

func NewClientStore(db *gorm.DB) AccountStore {
	return gormStore[models.Client, *models.Client]{db: db, kind: models.KindClient}
}

// DefaultStores returns the account stores in login priority order.
func DefaultStores(db *gorm.DB) []AccountStore {
	return []AccountStore{
		NewUserStore(db),
		NewSupervisorStore(db),
		NewClientStore(db),
	}
}
