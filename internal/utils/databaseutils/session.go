package databaseutils

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/mdobak/go-xerrors"
)

type txKey struct{}

// SQLExecutor is the part of *sql.DB and *sql.Tx the query helpers need.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session runs units of work in a transaction carried by the context.
type Session interface {
	DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) error
}

type sqlSession struct {
	db *sql.DB
}

func NewSession(db *sql.DB) Session {
	return &sqlSession{db: db}
}

// DoTransactionally commits when fn returns nil and rolls back otherwise. A
// context that already carries a transaction joins it instead of nesting.
func (s *sqlSession) DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Newf("session: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("session: rollback failed", "rollback_error", rbErr, "error", err)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = xerrors.Newf("session: commit transaction: %w", cErr)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

// GetSQLExecutor returns the transaction carried by ctx, or fallbackDB.
func GetSQLExecutor(ctx context.Context, fallbackDB *sql.DB) SQLExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallbackDB
}

// DoTransactionally is Session.DoTransactionally for work that yields a value.
func DoTransactionally[T any](ctx context.Context, session Session, fn func(txCtx context.Context) (T, error)) (T, error) {
	var result T
	err := session.DoTransactionally(ctx, func(txCtx context.Context) error {
		r, err := fn(txCtx)
		result = r
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
