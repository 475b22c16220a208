package postgres

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/gobank/internal/domain"
	"github.com/iho/gobank/internal/usecase"
)

const pgErrForeignKeyViolation = "23503"

// Ledger implements usecase.TransactionLedger on PostgreSQL. Rows are
// append-only; no UPDATE or DELETE is ever issued against transactions.
type Ledger struct {
	pool    *pgxpool.Pool
	idGen   usecase.IDGenerator
	retrier *Retrier
}

// NewLedger creates a new Ledger. idGen must yield strictly increasing
// IDs; see idgen.MonotonicGenerator.
func NewLedger(pool *pgxpool.Pool, idGen usecase.IDGenerator) *Ledger {
	return &Ledger{
		pool:    pool,
		idGen:   idGen,
		retrier: NewRetrier(),
	}
}

const insertTransaction = `
	INSERT INTO transactions (id, account_id, type, amount, timestamp)
	VALUES ($1, $2, $3, $4, $5)`

// Append adds one record for the account and returns it with its
// assigned ID and timestamp.
func (l *Ledger) Append(ctx context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
	txn, err := l.newRecord(accountID, typ, amount)
	if err != nil {
		return nil, err
	}

	err = l.retrier.Retry(ctx, func() error {
		_, execErr := l.pool.Exec(ctx, insertTransaction,
			txn.ID, txn.AccountID, string(txn.Type), int64(txn.Amount), txn.Timestamp)

		return execErr
	})
	if err != nil {
		return nil, mapLedgerError(err)
	}

	return txn, nil
}

// AppendTransfer adds the linked transfer_out/transfer_in pair inside one
// database transaction: either both rows commit or neither does.
func (l *Ledger) AppendTransfer(ctx context.Context, fromAccountID, toAccountID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error) {
	out, err := l.newRecord(fromAccountID, domain.TransactionTransferOut, amount)
	if err != nil {
		return nil, nil, err
	}

	in, err := l.newRecord(toAccountID, domain.TransactionTransferIn, amount)
	if err != nil {
		return nil, nil, err
	}
	in.Timestamp = out.Timestamp

	err = l.retrier.Retry(ctx, func() error {
		return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			batch.Queue(insertTransaction,
				out.ID, out.AccountID, string(out.Type), int64(out.Amount), out.Timestamp)
			batch.Queue(insertTransaction,
				in.ID, in.AccountID, string(in.Type), int64(in.Amount), in.Timestamp)

			return tx.SendBatch(ctx, batch).Close()
		})
	})
	if err != nil {
		return nil, nil, mapLedgerError(err)
	}

	return out, in, nil
}

func (l *Ledger) newRecord(accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		ID:        l.idGen.Generate(),
		AccountID: accountID,
		Type:      typ,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.Validate(); err != nil {
		return nil, err
	}

	return txn, nil
}

// HistoryFor yields the account's records newest first. Each range over
// the sequence issues a fresh query, so iteration is restartable.
func (l *Ledger) HistoryFor(ctx context.Context, accountID string) iter.Seq2[*domain.Transaction, error] {
	const query = `
		SELECT id, account_id, type, amount, timestamp
		FROM transactions
		WHERE account_id = $1
		ORDER BY timestamp DESC, id DESC`

	return func(yield func(*domain.Transaction, error) bool) {
		rows, err := l.pool.Query(ctx, query, accountID)
		if err != nil {
			yield(nil, err)

			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				txn    domain.Transaction
				typ    string
				amount int64
			)

			if err := rows.Scan(&txn.ID, &txn.AccountID, &typ, &amount, &txn.Timestamp); err != nil {
				yield(nil, err)

				return
			}

			txn.Type = domain.TransactionType(typ)
			txn.Amount = domain.Amount(amount)

			if !yield(&txn, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// mapLedgerError translates a foreign key violation on account_id into the
// domain sentinel; anything else passes through.
func mapLedgerError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKeyViolation {
		return domain.ErrAccountNotFound
	}

	return err
}
