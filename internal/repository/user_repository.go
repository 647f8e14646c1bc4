package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	ExistsByLogin(ctx context.Context, login string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	DeleteByID(ctx context.Context, id uuid.UUID) (int64, error)

	// InTransaction runs fn inside a single database transaction with the
	// configured row-lock wait timeout applied. The transaction commits if
	// fn returns nil and rolls back otherwise.
	InTransaction(ctx context.Context, fn func(tx BalanceTx) error) error
}

// BalanceTx is the set of balance operations available inside one
// transaction. LockForUpdate holds an exclusive row lock until the
// transaction ends, so a lock-check-write sequence cannot interleave
// with another writer of the same row.
type BalanceTx interface {
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	IncreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error)
	DecreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error)
}
