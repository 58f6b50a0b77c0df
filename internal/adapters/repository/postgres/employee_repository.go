package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/docack/internal/core/employee"
	pgdb "github.com/ogurasousui/docack/internal/platform/db/postgres"
)

const employeeColumns = `id, employee_number, last_name, first_name, middle_name, department_id, position,
               work_phone, email, external_id, registered, role, created_at, updated_at`

// EmployeeRepository は PostgreSQL を利用した社員ディレクトリの実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE id = $1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByNumber は社員番号の完全一致で社員を取得します。
func (r *EmployeeRepository) FindByNumber(ctx context.Context, number string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE employee_number = $1
    `, number)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByExternalID は外部 ID に紐づく社員を取得します。
func (r *EmployeeRepository) FindByExternalID(ctx context.Context, externalID string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE external_id = $1
    `, externalID)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// ListByDepartment は部署の全社員を社員番号順で返します。
func (r *EmployeeRepository) ListByDepartment(ctx context.Context, departmentID string) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE department_id = $1
         ORDER BY employee_number
    `, departmentID)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return employees, nil
}

// Update は部署と勤務先電話番号を部分更新します。nil の項目は変更しません。
func (r *EmployeeRepository) Update(ctx context.Context, in employee.UpdateFields) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET department_id = COALESCE($2, department_id),
               work_phone = COALESCE($3, work_phone),
               updated_at = $4
         WHERE id = $1
        RETURNING `+employeeColumns+`
    `, in.ID, in.DepartmentID, in.WorkPhone, in.UpdatedAt)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// BindExternalID は外部 ID を紐づけて登録済みにします。同じ外部 ID の再紐づけは成功します。
func (r *EmployeeRepository) BindExternalID(ctx context.Context, employeeID, externalID string, at time.Time) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET external_id = $2,
               registered = TRUE,
               updated_at = $3
         WHERE id = $1
           AND (external_id IS NULL OR external_id = $2)
        RETURNING `+employeeColumns+`
    `, employeeID, externalID, at)

	bound, err := scanEmployee(row)
	if err == nil {
		return bound, nil
	}
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		return nil, translateEmployeePgError(err)
	}

	// 更新対象がない場合、社員が存在すれば別の外部 ID に紐づいている。
	if _, findErr := r.FindByID(ctx, employeeID); findErr != nil {
		return nil, findErr
	}
	return nil, employee.ErrExternalIDConflict
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		emp        employee.Employee
		externalID sql.NullString
		role       string
	)

	if err := row.Scan(
		&emp.ID,
		&emp.Number,
		&emp.LastName,
		&emp.FirstName,
		&emp.MiddleName,
		&emp.DepartmentID,
		&emp.Position,
		&emp.WorkPhone,
		&emp.Email,
		&externalID,
		&emp.Registered,
		&role,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	if externalID.Valid {
		id := externalID.String
		emp.ExternalID = &id
	}
	emp.Role = employee.Role(role)
	return &emp, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	code, constraint, ok := pgdb.Violation(err)
	if !ok {
		return err
	}
	switch code {
	case pgdb.CodeUniqueViolation:
		if constraint == "employees_external_id_key" {
			return employee.ErrExternalIDConflict
		}
	case pgdb.CodeForeignKeyViolation:
		if constraint == "employees_department_id_fkey" {
			return employee.ErrDepartmentNotFound
		}
	case pgdb.CodeCheckViolation:
		if constraint == "employees_registered_check" {
			return employee.ErrInvalidExternalID
		}
	}
	return err
}
