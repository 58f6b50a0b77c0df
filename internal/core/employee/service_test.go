package employee

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeEmployeeRepo struct {
	employees map[string]*Employee
	updates   int
}

func newFakeEmployeeRepo(emps ...*Employee) *fakeEmployeeRepo {
	r := &fakeEmployeeRepo{employees: make(map[string]*Employee)}
	for _, e := range emps {
		r.employees[e.ID] = cloneEmployee(e)
	}
	return r
}

func (r *fakeEmployeeRepo) FindByID(_ context.Context, id string) (*Employee, error) {
	emp, ok := r.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	return cloneEmployee(emp), nil
}

func (r *fakeEmployeeRepo) FindByNumber(_ context.Context, number string) (*Employee, error) {
	for _, emp := range r.employees {
		if emp.Number == number {
			return cloneEmployee(emp), nil
		}
	}
	return nil, ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) FindByExternalID(_ context.Context, externalID string) (*Employee, error) {
	for _, emp := range r.employees {
		if emp.BoundTo(externalID) {
			return cloneEmployee(emp), nil
		}
	}
	return nil, ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) ListByDepartment(_ context.Context, departmentID string) ([]*Employee, error) {
	var out []*Employee
	for _, emp := range r.employees {
		if emp.DepartmentID == departmentID {
			out = append(out, cloneEmployee(emp))
		}
	}
	return out, nil
}

func (r *fakeEmployeeRepo) Update(_ context.Context, in UpdateFields) (*Employee, error) {
	emp, ok := r.employees[in.ID]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	r.updates++
	if in.DepartmentID != nil {
		emp.DepartmentID = *in.DepartmentID
	}
	if in.WorkPhone != nil {
		emp.WorkPhone = *in.WorkPhone
	}
	emp.UpdatedAt = in.UpdatedAt
	return cloneEmployee(emp), nil
}

func (r *fakeEmployeeRepo) BindExternalID(_ context.Context, employeeID, externalID string, at time.Time) (*Employee, error) {
	emp, ok := r.employees[employeeID]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	if emp.ExternalID != nil && *emp.ExternalID != externalID {
		return nil, ErrExternalIDConflict
	}
	for _, other := range r.employees {
		if other.ID != employeeID && other.BoundTo(externalID) {
			return nil, ErrExternalIDConflict
		}
	}
	id := externalID
	emp.ExternalID = &id
	emp.Registered = true
	emp.UpdatedAt = at
	return cloneEmployee(emp), nil
}

type fakeDepartmentRepo struct {
	departments []*Department
}

func (r *fakeDepartmentRepo) FindByID(_ context.Context, id string) (*Department, error) {
	for _, d := range r.departments {
		if d.ID == id {
			clone := *d
			return &clone, nil
		}
	}
	return nil, ErrDepartmentNotFound
}

func (r *fakeDepartmentRepo) List(_ context.Context) ([]*Department, error) {
	return r.departments, nil
}

type recordingTx struct {
	readWrite int
	readOnly  int
}

func (tx *recordingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	tx.readOnly++
	return fn(ctx)
}

func (tx *recordingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	tx.readWrite++
	return fn(ctx)
}

func cloneEmployee(emp *Employee) *Employee {
	if emp == nil {
		return nil
	}
	copy := *emp
	if emp.ExternalID != nil {
		id := *emp.ExternalID
		copy.ExternalID = &id
	}
	return &copy
}

func strPtr(s string) *string { return &s }

func TestService_FindByNumber_TrimsInput(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo(&Employee{ID: "emp-1", Number: "1042"})
	tx := &recordingTx{}
	svc := NewService(repo, &fakeDepartmentRepo{}, nil, tx)

	found, err := svc.FindByNumber(context.Background(), " 1042 ")
	if err != nil {
		t.Fatalf("FindByNumber returned error: %v", err)
	}
	if found.ID != "emp-1" {
		t.Fatalf("expected emp-1, got %s", found.ID)
	}
	if tx.readOnly != 1 {
		t.Fatalf("expected one read-only transaction, got %d", tx.readOnly)
	}

	if _, err := svc.FindByNumber(context.Background(), "   "); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if _, err := svc.FindByNumber(context.Background(), "9999"); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestService_ListRecipients_FiltersUnreachable(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo(
		&Employee{ID: "a", DepartmentID: "d1", Registered: true, ExternalID: strPtr("100")},
		&Employee{ID: "b", DepartmentID: "d1", Registered: false},
		&Employee{ID: "c", DepartmentID: "d1", Registered: true},
		&Employee{ID: "d", DepartmentID: "d2", Registered: true, ExternalID: strPtr("200")},
	)
	svc := NewService(repo, &fakeDepartmentRepo{}, nil, nil)

	recipients, err := svc.ListRecipients(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ListRecipients returned error: %v", err)
	}
	if len(recipients) != 1 || recipients[0].ID != "a" {
		t.Fatalf("expected only employee a, got %+v", recipients)
	}

	count, err := svc.CountByDepartment(context.Background(), "d1")
	if err != nil {
		t.Fatalf("CountByDepartment returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 members regardless of registration, got %d", count)
	}
}

func TestService_AssignDepartment(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := newFakeEmployeeRepo(&Employee{ID: "emp-1", Number: "1042", DepartmentID: "old"})
	depts := &fakeDepartmentRepo{departments: []*Department{{ID: "sales", Name: "Sales"}}}
	svc := NewService(repo, depts, &stubClock{now: now}, nil)

	updated, err := svc.AssignDepartment(context.Background(), "emp-1", "sales")
	if err != nil {
		t.Fatalf("AssignDepartment returned error: %v", err)
	}
	if updated.DepartmentID != "sales" || !updated.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected employee after update: %+v", updated)
	}

	if _, err := svc.AssignDepartment(context.Background(), "emp-1", "missing"); !errors.Is(err, ErrDepartmentNotFound) {
		t.Fatalf("expected ErrDepartmentNotFound, got %v", err)
	}
}

func TestService_CompleteRegistration_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo(&Employee{ID: "emp-1", Number: "1042"})
	tx := &recordingTx{}
	svc := NewService(repo, &fakeDepartmentRepo{}, &stubClock{now: time.Now().UTC()}, tx)

	emp, err := svc.CompleteRegistration(context.Background(), CompleteRegistrationInput{
		EmployeeID: "emp-1",
		ExternalID: "777",
		WorkPhone:  " +7 (495) 123-45-67 ",
	})
	if err != nil {
		t.Fatalf("CompleteRegistration returned error: %v", err)
	}
	if !emp.Registered || !emp.BoundTo("777") {
		t.Fatalf("expected registered and bound employee, got %+v", emp)
	}
	if emp.WorkPhone != "+7 (495) 123-45-67" {
		t.Fatalf("expected trimmed phone, got %q", emp.WorkPhone)
	}
	if tx.readWrite != 1 {
		t.Fatalf("expected a single read-write transaction, got %d", tx.readWrite)
	}
}

func TestService_CompleteRegistration_Conflict(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo(
		&Employee{ID: "emp-1", Number: "1042", Registered: true, ExternalID: strPtr("111")},
		&Employee{ID: "emp-2", Number: "2000"},
	)
	svc := NewService(repo, &fakeDepartmentRepo{}, nil, nil)

	_, err := svc.CompleteRegistration(context.Background(), CompleteRegistrationInput{
		EmployeeID: "emp-1", ExternalID: "222", WorkPhone: "100",
	})
	if !errors.Is(err, ErrExternalIDConflict) {
		t.Fatalf("expected ErrExternalIDConflict for second identity, got %v", err)
	}

	_, err = svc.CompleteRegistration(context.Background(), CompleteRegistrationInput{
		EmployeeID: "emp-2", ExternalID: "111", WorkPhone: "100",
	})
	if !errors.Is(err, ErrExternalIDConflict) {
		t.Fatalf("expected ErrExternalIDConflict for identity reuse, got %v", err)
	}

	if _, err := svc.CompleteRegistration(context.Background(), CompleteRegistrationInput{
		EmployeeID: "emp-1", ExternalID: "111", WorkPhone: "100",
	}); err != nil {
		t.Fatalf("re-binding the same identity should succeed, got %v", err)
	}
}

func TestService_CompleteRegistration_InvalidPhoneWritesNothing(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo(&Employee{ID: "emp-1", Number: "1042"})
	svc := NewService(repo, &fakeDepartmentRepo{}, nil, nil)

	_, err := svc.CompleteRegistration(context.Background(), CompleteRegistrationInput{
		EmployeeID: "emp-1", ExternalID: "777", WorkPhone: "call me",
	})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("expected no writes, got %d", repo.updates)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"100":                   true,
		"+81 3-1234-5678":       true,
		"(495) 123 45 67":       true,
		"":                      false,
		"abc":                   false,
		"123456789012345678901": false,
	}
	for in, ok := range cases {
		_, err := NormalizePhone(in)
		if ok && err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", in, err)
		}
		if !ok && !errors.Is(err, ErrInvalidPhone) {
			t.Errorf("NormalizePhone(%q) expected ErrInvalidPhone, got %v", in, err)
		}
	}
}

func TestEmployee_FullName(t *testing.T) {
	t.Parallel()

	e := &Employee{LastName: "Yamada", FirstName: "Taro"}
	if got := e.FullName(); got != "Yamada Taro" {
		t.Fatalf("unexpected full name %q", got)
	}
	e.MiddleName = " Jiro "
	if got := e.FullName(); got != "Yamada Taro Jiro" {
		t.Fatalf("unexpected full name %q", got)
	}
}
