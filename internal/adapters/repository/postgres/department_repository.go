package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/docack/internal/core/employee"
	pgdb "github.com/ogurasousui/docack/internal/platform/db/postgres"
)

// DepartmentRepository は部署の参照を提供します。部署の作成・変更は管理画面側の責務です。
type DepartmentRepository struct {
	pool pgdb.Queryer
}

// NewDepartmentRepository は DepartmentRepository を生成します。
func NewDepartmentRepository(pool pgdb.Queryer) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// FindByID は ID で部署を取得します。
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*employee.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var d employee.Department
	if err := exec.QueryRow(ctx, `SELECT id, name FROM departments WHERE id = $1`, id).Scan(&d.ID, &d.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List は部署を名前順で返します。
func (r *DepartmentRepository) List(ctx context.Context) ([]*employee.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	departments := make([]*employee.Department, 0)
	for rows.Next() {
		var d employee.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		departments = append(departments, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return departments, nil
}

// ListDepartmentIDs は全部署向け公開の展開先となる部署 ID を返します。
func (r *DepartmentRepository) ListDepartmentIDs(ctx context.Context) ([]string, error) {
	departments, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(departments))
	for i, d := range departments {
		ids[i] = d.ID
	}
	return ids, nil
}
