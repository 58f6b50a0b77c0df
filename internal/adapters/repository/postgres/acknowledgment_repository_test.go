package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/docack/internal/core/ledger"
)

var ackColumnNames = []string{"id", "employee_id", "document_id", "confirmed", "confirmed_at"}

func TestAcknowledgmentRepository_InsertIfAbsent(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		mock := newMock(t)
		repo := NewAcknowledgmentRepository(mock)
		mock.ExpectQuery(`ON CONFLICT \(employee_id, document_id\) DO NOTHING`).
			WithArgs("emp-1", "doc-1", t1).
			WillReturnRows(pgxmock.NewRows(append(ackColumnNames, "created")).
				AddRow("ack-1", "emp-1", "doc-1", true, t1, true))

		rec, created, err := repo.InsertIfAbsent(context.Background(), &ledger.Record{EmployeeID: "emp-1", DocumentID: "doc-1", ConfirmedAt: t1})
		if err != nil {
			t.Fatalf("InsertIfAbsent returned error: %v", err)
		}
		if !created || rec.ID != "ack-1" {
			t.Fatalf("expected new record, got %+v created=%t", rec, created)
		}
	})

	t.Run("existing keeps original time", func(t *testing.T) {
		t.Parallel()

		mock := newMock(t)
		repo := NewAcknowledgmentRepository(mock)
		mock.ExpectQuery(`ON CONFLICT \(employee_id, document_id\) DO NOTHING`).
			WithArgs("emp-1", "doc-1", t2).
			WillReturnRows(pgxmock.NewRows(append(ackColumnNames, "created")).
				AddRow("ack-1", "emp-1", "doc-1", true, t1, false))

		rec, created, err := repo.InsertIfAbsent(context.Background(), &ledger.Record{EmployeeID: "emp-1", DocumentID: "doc-1", ConfirmedAt: t2})
		if err != nil {
			t.Fatalf("InsertIfAbsent returned error: %v", err)
		}
		if created || !rec.ConfirmedAt.Equal(t1) {
			t.Fatalf("expected existing record at %v, got %+v created=%t", t1, rec, created)
		}
	})

	t.Run("concurrent insert falls back to read", func(t *testing.T) {
		t.Parallel()

		mock := newMock(t)
		repo := NewAcknowledgmentRepository(mock)
		mock.ExpectQuery(`ON CONFLICT \(employee_id, document_id\) DO NOTHING`).
			WithArgs("emp-1", "doc-1", t2).
			WillReturnRows(pgxmock.NewRows(append(ackColumnNames, "created")))
		mock.ExpectQuery(`FROM acknowledgments\s+WHERE employee_id = \$1 AND document_id = \$2`).
			WithArgs("emp-1", "doc-1").
			WillReturnRows(pgxmock.NewRows(ackColumnNames).AddRow("ack-1", "emp-1", "doc-1", true, t1))

		rec, created, err := repo.InsertIfAbsent(context.Background(), &ledger.Record{EmployeeID: "emp-1", DocumentID: "doc-1", ConfirmedAt: t2})
		if err != nil {
			t.Fatalf("InsertIfAbsent returned error: %v", err)
		}
		if created || rec.ID != "ack-1" {
			t.Fatalf("expected existing record, got %+v created=%t", rec, created)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("missing reference", func(t *testing.T) {
		t.Parallel()

		mock := newMock(t)
		repo := NewAcknowledgmentRepository(mock)
		mock.ExpectQuery(`ON CONFLICT \(employee_id, document_id\) DO NOTHING`).
			WithArgs("emp-1", "doc-9", t1).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "acknowledgments_document_id_fkey"})

		_, _, err := repo.InsertIfAbsent(context.Background(), &ledger.Record{EmployeeID: "emp-1", DocumentID: "doc-9", ConfirmedAt: t1})
		if !errors.Is(err, ledger.ErrReferenceNotFound) {
			t.Fatalf("expected ErrReferenceNotFound, got %v", err)
		}
	})
}

func TestAcknowledgmentRepository_CountReaders(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewAcknowledgmentRepository(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM acknowledgments`).
		WithArgs("doc-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountReaders(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("CountReaders returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 readers, got %d", n)
	}
}

func TestAcknowledgmentRepository_ReadDocumentIDs(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewAcknowledgmentRepository(mock)

	empty, err := repo.ReadDocumentIDs(context.Background(), "emp-1", nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result without a query, got %v %v", empty, err)
	}

	ids := []string{"doc-1", "doc-2"}
	mock.ExpectQuery(`document_id = ANY\(\$2::uuid\[\]\)`).
		WithArgs("emp-1", ids).
		WillReturnRows(pgxmock.NewRows([]string{"document_id"}).AddRow("doc-2"))

	read, err := repo.ReadDocumentIDs(context.Background(), "emp-1", ids)
	if err != nil {
		t.Fatalf("ReadDocumentIDs returned error: %v", err)
	}
	if _, ok := read["doc-2"]; !ok || len(read) != 1 {
		t.Fatalf("unexpected read set %v", read)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
