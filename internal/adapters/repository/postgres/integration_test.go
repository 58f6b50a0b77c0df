//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
	"github.com/ogurasousui/docack/internal/platform/config"
	pgdb "github.com/ogurasousui/docack/internal/platform/db/postgres"
)

const repoRoot = "../../../.."

func TestAcknowledgmentFlowIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if err := resetMigrations(cfg.Database.DSN(), filepath.Join(repoRoot, "assets/migrations")); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgdb.NewPool(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	var deptID, empID string
	if err := pool.QueryRow(ctx, `INSERT INTO departments (name) VALUES ('Sales') RETURNING id`).Scan(&deptID); err != nil {
		t.Fatalf("seed department: %v", err)
	}
	if err := pool.QueryRow(ctx, `
        INSERT INTO employees (employee_number, last_name, first_name, department_id)
        VALUES ('1042', 'Ivanov', 'Ivan', $1) RETURNING id
    `, deptID).Scan(&empID); err != nil {
		t.Fatalf("seed employee: %v", err)
	}

	tx := pgdb.NewTransactionManager(pool)
	employees := NewEmployeeRepository(pool)
	departments := NewDepartmentRepository(pool)
	documents := NewDocumentRepository(pool)
	directory := employee.NewService(employees, departments, nil, tx)

	registered, err := directory.CompleteRegistration(ctx, employee.CompleteRegistrationInput{
		EmployeeID: empID, ExternalID: "777", WorkPhone: "+7 495 123-45-67",
	})
	if err != nil {
		t.Fatalf("CompleteRegistration error: %v", err)
	}
	if !registered.BoundTo("777") || !registered.Registered {
		t.Fatalf("unexpected employee: %+v", registered)
	}

	notified := make(chan string, 1)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	listener := NewDocumentListener(PoolConnector(pool), documents, func(_ context.Context, id string) error {
		notified <- id
		return nil
	}, nil)
	go listener.Run(listenCtx)
	time.Sleep(200 * time.Millisecond)

	publisher := document.NewService(documents, departments, nil, tx, nil)
	docs, err := publisher.Publish(ctx, document.PublishInput{
		Title: "Fire safety", Kind: "order", Deadline: time.Now().AddDate(0, 0, 7), DepartmentID: deptID,
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case id := <-notified:
		if id != docs[0].ID {
			t.Fatalf("expected notification for %s, got %s", docs[0].ID, id)
		}
	case <-ctx.Done():
		t.Fatal("no document_created notification received")
	}

	led := ledger.NewService(NewAcknowledgmentRepository(pool), documents, directory, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := led.RecordIfAbsent(ctx, empID, docs[0].ID, time.Time{})
			if err != nil {
				t.Errorf("RecordIfAbsent error: %v", err)
				return
			}
			if out.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one created record, got %d", created)
	}
	progress, err := led.Progress(ctx, docs[0].ID)
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if progress.Readers != 1 || progress.Eligible != 1 || progress.Percent() != 100 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	if _, err := directory.CompleteRegistration(ctx, employee.CompleteRegistrationInput{
		EmployeeID: empID, ExternalID: "888", WorkPhone: "123",
	}); !errors.Is(err, employee.ErrExternalIDConflict) {
		t.Fatalf("expected ErrExternalIDConflict, got %v", err)
	}
}

func resetMigrations(dsn, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return filepath.Join(repoRoot, "assets/local.yaml")
}
