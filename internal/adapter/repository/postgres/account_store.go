package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/gobank/internal/domain"
)

const pgErrUniqueViolation = "23505"

// AccountStore implements usecase.AccountStore on PostgreSQL.
type AccountStore struct {
	pool    *pgxpool.Pool
	retrier *Retrier
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{
		pool:    pool,
		retrier: NewRetrier(),
	}
}

// Create inserts a new account. A username collision maps to
// domain.ErrDuplicateUsername.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	const query = `
		INSERT INTO accounts (id, username, password_hash, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		int64(account.Balance),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrDuplicateUsername
		}

		return err
	}

	return nil
}

// GetByUsername retrieves an account by username.
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	const query = `
		SELECT id, username, password_hash, balance, created_at
		FROM accounts
		WHERE username = $1`

	return s.scanAccount(s.pool.QueryRow(ctx, query, username))
}

// GetByID retrieves an account by ID.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
		SELECT id, username, password_hash, balance, created_at
		FROM accounts
		WHERE id = $1`

	return s.scanAccount(s.pool.QueryRow(ctx, query, id))
}

// AdjustBalance applies a signed delta to an account balance and returns the
// new balance. A delta that would drive the balance negative leaves the row
// untouched and returns domain.ErrInsufficientFunds.
func (s *AccountStore) AdjustBalance(ctx context.Context, id string, delta domain.Amount) (domain.Amount, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance`

	var balance int64

	err := s.retrier.Retry(ctx, func() error {
		return s.pool.QueryRow(ctx, query, id, int64(delta)).Scan(&balance)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.classifyAdjustFailure(ctx, id)
		}

		return 0, err
	}

	return domain.Amount(balance), nil
}

// classifyAdjustFailure distinguishes a missing account from a guarded update
// that was rejected for insufficient funds.
func (s *AccountStore) classifyAdjustFailure(ctx context.Context, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		return domain.ErrAccountNotFound
	}

	return domain.ErrInsufficientFunds
}

// TransferBalance debits fromID and credits toID inside one database
// transaction, so readers only ever see both changes or neither. Rows
// are locked in ascending ID order to avoid lock-order deadlocks.
func (s *AccountStore) TransferBalance(ctx context.Context, fromID, toID string, amount domain.Amount) error {
	ids := []string{fromID, toID}
	sort.Strings(ids)

	return s.retrier.Retry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			const lockQuery = `
				SELECT id, balance FROM accounts
				WHERE id = ANY($1)
				ORDER BY id
				FOR UPDATE`

			balances := make(map[string]int64, 2)

			rows, err := tx.Query(ctx, lockQuery, ids)
			if err != nil {
				return err
			}
			for rows.Next() {
				var (
					id      string
					balance int64
				)
				if err := rows.Scan(&id, &balance); err != nil {
					rows.Close()
					return err
				}
				balances[id] = balance
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}

			fromBalance, ok := balances[fromID]
			if !ok {
				return domain.ErrAccountNotFound
			}
			if _, ok := balances[toID]; !ok {
				return domain.ErrAccountNotFound
			}

			if fromBalance-int64(amount) < 0 {
				return domain.ErrInsufficientFunds
			}

			const updateQuery = `UPDATE accounts SET balance = balance + $2 WHERE id = $1`

			if _, err := tx.Exec(ctx, updateQuery, fromID, -int64(amount)); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, updateQuery, toID, int64(amount)); err != nil {
				return err
			}

			return nil
		})
	})
}

// TotalBalance returns the sum of all account balances.
func (s *AccountStore) TotalBalance(ctx context.Context) (domain.Amount, error) {
	const query = `SELECT COALESCE(SUM(balance), 0) FROM accounts`

	var total int64
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, err
	}

	return domain.Amount(total), nil
}

func (s *AccountStore) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		balance int64
		created time.Time
	)

	err := row.Scan(&account.ID, &account.Username, &account.PasswordHash, &balance, &created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	account.Balance = domain.Amount(balance)
	account.CreatedAt = created

	return &account, nil
}
