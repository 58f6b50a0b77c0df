package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/docack/internal/core/ledger"
	pgdb "github.com/ogurasousui/docack/internal/platform/db/postgres"
)

// AcknowledgmentRepository は確認記録の永続化の実装です。
// (employee_id, document_id) の一意制約が記録の重複を防ぎます。
type AcknowledgmentRepository struct {
	pool pgdb.Queryer
}

// NewAcknowledgmentRepository は AcknowledgmentRepository を生成します。
func NewAcknowledgmentRepository(pool pgdb.Queryer) *AcknowledgmentRepository {
	return &AcknowledgmentRepository{pool: pool}
}

// InsertIfAbsent は記録を挿入し、既に存在する場合は既存の記録を返します。
func (r *AcknowledgmentRepository) InsertIfAbsent(ctx context.Context, rec *ledger.Record) (*ledger.Record, bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH ins AS (
            INSERT INTO acknowledgments (employee_id, document_id, confirmed, confirmed_at)
            VALUES ($1, $2, TRUE, $3)
            ON CONFLICT (employee_id, document_id) DO NOTHING
            RETURNING id, employee_id, document_id, confirmed, confirmed_at
        )
        SELECT id, employee_id, document_id, confirmed, confirmed_at, TRUE AS created FROM ins
        UNION ALL
        SELECT id, employee_id, document_id, confirmed, confirmed_at, FALSE AS created
          FROM acknowledgments
         WHERE employee_id = $1 AND document_id = $2
           AND NOT EXISTS (SELECT 1 FROM ins)
    `, rec.EmployeeID, rec.DocumentID, rec.ConfirmedAt)

	var (
		out     ledger.Record
		created bool
	)
	err := row.Scan(&out.ID, &out.EmployeeID, &out.DocumentID, &out.Confirmed, &out.ConfirmedAt, &created)
	if err == nil {
		return &out, created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, translateAcknowledgmentPgError(err)
	}

	// 競合した挿入のコミットが同じスナップショットから見えなかった場合は読み直す。
	existing, findErr := r.Find(ctx, rec.EmployeeID, rec.DocumentID)
	if findErr != nil {
		return nil, false, findErr
	}
	return existing, false, nil
}

// Find は社員と文書の組で記録を取得します。
func (r *AcknowledgmentRepository) Find(ctx context.Context, employeeID, documentID string) (*ledger.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var rec ledger.Record
	err := exec.QueryRow(ctx, `
        SELECT id, employee_id, document_id, confirmed, confirmed_at
          FROM acknowledgments
         WHERE employee_id = $1 AND document_id = $2
    `, employeeID, documentID).Scan(&rec.ID, &rec.EmployeeID, &rec.DocumentID, &rec.Confirmed, &rec.ConfirmedAt)
	if err != nil {
		return nil, translateAcknowledgmentPgError(err)
	}
	return &rec, nil
}

// CountReaders は文書の確認済み人数を返します。
func (r *AcknowledgmentRepository) CountReaders(ctx context.Context, documentID string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int
	if err := exec.QueryRow(ctx, `
        SELECT COUNT(*)
          FROM acknowledgments
         WHERE document_id = $1 AND confirmed
    `, documentID).Scan(&n); err != nil {
		return 0, translateAcknowledgmentPgError(err)
	}
	return n, nil
}

// ReadDocumentIDs は documentIDs のうち社員が確認済みのものを返します。
func (r *AcknowledgmentRepository) ReadDocumentIDs(ctx context.Context, employeeID string, documentIDs []string) (map[string]struct{}, error) {
	read := make(map[string]struct{})
	if len(documentIDs) == 0 {
		return read, nil
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT document_id
          FROM acknowledgments
         WHERE employee_id = $1 AND document_id = ANY($2::uuid[]) AND confirmed
    `, employeeID, documentIDs)
	if err != nil {
		return nil, translateAcknowledgmentPgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		read[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return read, nil
}

func translateAcknowledgmentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrRecordNotFound
	}
	if code, _, ok := pgdb.Violation(err); ok && code == pgdb.CodeForeignKeyViolation {
		return ledger.ErrReferenceNotFound
	}
	return err
}
