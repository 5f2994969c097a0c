package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	customError "github.com/segyhp/credit-engine/pkg/errors"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

type postgresStore struct {
	db         *sqlx.DB
	maxRetries int
	log        logrus.FieldLogger
}

// NewPostgresStore returns a Store over db. Both lib/pq and the pgx stdlib driver
// are supported.
func NewPostgresStore(db *sqlx.DB, maxRetries int, log logrus.FieldLogger) Store {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &postgresStore{db: db, maxRetries: maxRetries, log: log}
}

func (s *postgresStore) Clients() ClientRepository   { return &clientRepository{q: s.db} }
func (s *postgresStore) Loans() LoanRepository       { return &loanRepository{q: s.db} }
func (s *postgresStore) Payments() PaymentRepository { return &paymentRepository{q: s.db} }

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Retrying transaction after serialization failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *postgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// ReadInTx uses a repeatable-read, read-only transaction: plain SELECTs see one
// snapshot and never wait on row locks held by writers.
func (s *postgresStore) ReadInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) Clients() ClientRepository   { return &clientRepository{q: t.tx} }
func (t *postgresTx) Loans() LoanRepository       { return &loanRepository{q: t.tx} }
func (t *postgresTx) Payments() PaymentRepository { return &paymentRepository{q: t.tx} }

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

func isRetryable(err error) bool {
	code, _, ok := sqlState(err)
	return ok && (code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected)
}

// mapError converts driver errors into business errors. Unique violations keep the
// constraint name so callers can tell which key collided.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if code, constraint, ok := sqlState(err); ok && code == sqlStateUniqueViolation {
		return customError.WrapAlreadyExists(constraintKind(constraint), constraint)
	}
	return customError.WrapDatabaseError(err)
}

func constraintKind(constraint string) string {
	switch {
	case strings.HasPrefix(constraint, "clients"):
		return "client"
	case strings.HasPrefix(constraint, "loans"):
		return "loan"
	case strings.HasPrefix(constraint, "installments"):
		return "installment"
	case strings.HasPrefix(constraint, "payment"):
		return "payment"
	}
	return "record"
}

// notFound maps sql.ErrNoRows to a NotFound business error.
func notFound(err error, kind string, id fmt.Stringer) error {
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapNotFound(kind, id)
	}
	return mapError(err)
}

func expectRow(res sql.Result, kind string, id fmt.Stringer) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return customError.WrapNotFound(kind, id)
	}
	return nil
}
