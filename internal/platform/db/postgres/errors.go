package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL の SQLSTATE のうちリポジトリが個別に扱うものです。
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"

	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// Violation はエラーが制約違反であれば SQLSTATE と制約名を返します。
func Violation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	switch pgErr.Code {
	case CodeUniqueViolation, CodeForeignKeyViolation, CodeCheckViolation:
		return pgErr.Code, pgErr.ConstraintName, true
	default:
		return "", "", false
	}
}

// Retryable はトランザクション全体をやり直せば成功し得るエラーかどうかを返します。
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == CodeSerializationFailure || pgErr.Code == CodeDeadlockDetected
}
