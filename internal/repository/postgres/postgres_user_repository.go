package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/infrastructure/observability"
	"github.com/edalik/electronics-store-user-service/internal/models"
	repo "github.com/edalik/electronics-store-user-service/internal/repository"
	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

var _ repo.UserRepository = (*PostgresUserRepository)(nil)

// Postgres error codes.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeLockNotAvail    = "55P03"
)

const userColumns = `id, login, password, name, surname, patronymic, gender, birthdate, phone_number, email, balance, created_time, updated_time`

type PostgresUserRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresUserRepository(db *sql.DB, lockTimeout time.Duration) *PostgresUserRepository {
	if lockTimeout <= 0 {
		lockTimeout = 3000 * time.Millisecond
	}
	return &PostgresUserRepository{db: db, lockTimeout: lockTimeout}
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func track(method string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&user.Patronymic,
		&user.Gender,
		&user.Birthdate,
		&user.PhoneNumber,
		&user.Email,
		&user.Balance,
		&user.CreatedTime,
		&user.UpdatedTime,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	done := track("Create")
	defer func() { done(err) }()

	if user == nil {
		return fmt.Errorf("%w: user is nil", pkgerrors.ErrInvalidInput)
	}
	if user.Login == "" {
		return fmt.Errorf("%w: login is required", pkgerrors.ErrInvalidInput)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
	INSERT INTO users (id, login, password, name, surname, patronymic, gender, birthdate, phone_number, email, balance)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING balance, created_time, updated_time
	`
	err = r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Patronymic,
		user.Gender,
		user.Birthdate,
		user.PhoneNumber,
		user.Email,
		user.Balance,
	).Scan(&user.Balance, &user.CreatedTime, &user.UpdatedTime)
	if pgCode(err) == codeUniqueViolation {
		return pkgerrors.ErrLoginExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user *models.User, err error) {
	done := track("GetByID")
	defer func() { done(err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err = scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByLogin(ctx context.Context, login string) (user *models.User, err error) {
	done := track("GetByLogin")
	defer func() { done(err) }()

	if login == "" {
		return nil, fmt.Errorf("%w: login cannot be empty", pkgerrors.ErrInvalidInput)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	user, err = scanUser(r.db.QueryRowContext(ctx, query, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) ExistsByLogin(ctx context.Context, login string) (exists bool, err error) {
	done := track("ExistsByLogin")
	defer func() { done(err) }()

	query := `SELECT EXISTS (SELECT 1 FROM users WHERE login = $1)`
	if err = r.db.QueryRowContext(ctx, query, login).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return exists, nil
}

// Update persists the mutable profile fields. Login, email and balance are
// deliberately absent from the statement.
func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) (err error) {
	done := track("Update")
	defer func() { done(err) }()

	query := `
	UPDATE users
	SET name = $1, surname = $2, patronymic = $3, gender = $4, birthdate = $5, phone_number = $6, updated_time = now()
	WHERE id = $7
	RETURNING updated_time
	`
	err = r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Surname,
		user.Patronymic,
		user.Gender,
		user.Birthdate,
		user.PhoneNumber,
		user.ID,
	).Scan(&user.UpdatedTime)
	if errors.Is(err, sql.ErrNoRows) {
		return pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) DeleteByID(ctx context.Context, id uuid.UUID) (rows int64, err error) {
	done := track("DeleteByID")
	defer func() { done(err) }()

	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (r *PostgresUserRepository) InTransaction(ctx context.Context, fn func(tx repo.BalanceTx) error) (err error) {
	done := track("InTransaction")
	defer func() { done(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Bound every row-lock wait in this transaction. SET LOCAL reverts
	// automatically at commit/rollback.
	timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	if _, err = tx.ExecContext(ctx, timeout); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err = fn(&balanceTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type balanceTx struct {
	tx *sql.Tx
}

func (b *balanceTx) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(b.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if pgCode(err) == codeLockNotAvail {
		return nil, pkgerrors.ErrLockTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user row: %w", err)
	}
	return user, nil
}

func (b *balanceTx) IncreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	query := `UPDATE users SET balance = balance + $1, updated_time = now() WHERE id = $2`
	return b.change(ctx, query, id, amount)
}

func (b *balanceTx) DecreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	query := `UPDATE users SET balance = balance - $1, updated_time = now() WHERE id = $2`
	return b.change(ctx, query, id, amount)
}

func (b *balanceTx) change(ctx context.Context, query string, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	result, err := b.tx.ExecContext(ctx, query, amount, id)
	switch pgCode(err) {
	case codeLockNotAvail:
		return 0, pkgerrors.ErrLockTimeout
	case codeCheckViolation:
		// balance >= 0 constraint, the storage-level backstop
		return 0, pkgerrors.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("failed to change balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
