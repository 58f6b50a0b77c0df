package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/docack/internal/core/employee"
)

func TestDepartmentRepository_ListDepartmentIDs(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewDepartmentRepository(mock)

	mock.ExpectQuery(`SELECT id, name FROM departments ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow("dept-hr", "HR").
			AddRow("dept-sales", "Sales"))

	ids, err := repo.ListDepartmentIDs(context.Background())
	if err != nil {
		t.Fatalf("ListDepartmentIDs returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "dept-hr" || ids[1] != "dept-sales" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_FindByID_NotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewDepartmentRepository(mock)

	mock.ExpectQuery(`FROM departments WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, employee.ErrDepartmentNotFound) {
		t.Fatalf("expected ErrDepartmentNotFound, got %v", err)
	}
}
