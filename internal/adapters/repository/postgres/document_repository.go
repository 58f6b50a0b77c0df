package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/docack/internal/core/document"
	pgdb "github.com/ogurasousui/docack/internal/platform/db/postgres"
)

const documentColumns = `id, department_id, title, kind, deadline, code, created_at`

// DocumentRepository は PostgreSQL を利用した文書ストアの実装です。
type DocumentRepository struct {
	pool pgdb.Queryer
}

// NewDocumentRepository は DocumentRepository を生成します。
func NewDocumentRepository(pool pgdb.Queryer) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Get は ID で文書を取得します。
func (r *DocumentRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+documentColumns+`
          FROM documents
         WHERE id = $1
    `, id)

	found, err := scanDocument(row)
	if err != nil {
		return nil, translateDocumentPgError(err)
	}
	return found, nil
}

// FindByCode は QR コードの内容で文書を取得します。
func (r *DocumentRepository) FindByCode(ctx context.Context, code string) (*document.Document, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+documentColumns+`
          FROM documents
         WHERE code = $1
    `, code)

	found, err := scanDocument(row)
	if err != nil {
		return nil, translateDocumentPgError(err)
	}
	return found, nil
}

// ListByDepartment は部署の文書を締切・作成日時の順で返します。
func (r *DocumentRepository) ListByDepartment(ctx context.Context, departmentID string) ([]*document.Document, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+documentColumns+`
          FROM documents
         WHERE department_id = $1
         ORDER BY deadline, created_at
    `, departmentID)
	if err != nil {
		return nil, translateDocumentPgError(err)
	}
	defer rows.Close()

	docs := make([]*document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, translateDocumentPgError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDocumentPgError(err)
	}
	return docs, nil
}

// Create は文書を作成します。挿入時のトリガーが document_created を通知します。
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) (*document.Document, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO documents (id, department_id, title, kind, deadline, code, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+documentColumns+`
    `,
		doc.ID,
		doc.DepartmentID,
		doc.Title,
		doc.Kind,
		doc.Deadline,
		doc.Code,
		doc.CreatedAt,
	)

	created, err := scanDocument(row)
	if err != nil {
		return nil, translateDocumentPgError(err)
	}
	return created, nil
}

// ListUnnotifiedIDs は通知が完了していない文書の ID を作成順に最大 limit 件返します。
func (r *DocumentRepository) ListUnnotifiedIDs(ctx context.Context, limit int) ([]string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id
          FROM documents
         WHERE notified_at IS NULL
         ORDER BY created_at, id
         LIMIT $1
    `, limit)
	if err != nil {
		return nil, translateDocumentPgError(err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translateDocumentPgError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDocumentPgError(err)
	}
	return ids, nil
}

// MarkNotified は文書の通知完了時刻を記録します。記録済みの文書は変更しません。
func (r *DocumentRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        UPDATE documents
           SET notified_at = $2
         WHERE id = $1
           AND notified_at IS NULL
    `, id, at); err != nil {
		return translateDocumentPgError(err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		doc      document.Document
		deadline time.Time
	)
	if err := row.Scan(
		&doc.ID,
		&doc.DepartmentID,
		&doc.Title,
		&doc.Kind,
		&deadline,
		&doc.Code,
		&doc.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound
		}
		return nil, err
	}

	d := deadline.UTC()
	doc.Deadline = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return &doc, nil
}

func translateDocumentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return document.ErrDocumentNotFound
	}

	code, constraint, ok := pgdb.Violation(err)
	if !ok {
		return err
	}
	switch code {
	case pgdb.CodeUniqueViolation:
		if constraint == "documents_code_key" || constraint == "documents_pkey" {
			return document.ErrCodeConflict
		}
	case pgdb.CodeForeignKeyViolation:
		return document.ErrDepartmentNotFound
	}
	return err
}
