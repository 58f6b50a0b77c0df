// Package testutil はコア層のテストで共有するインメモリ実装とフィクスチャを提供します。
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
)

// ErrUnavailable はストア障害を模したエラーです。
var ErrUnavailable = errors.New("testutil: store unavailable")

// MemStore は社員・部署・文書・確認記録を 1 つのミューテックスで保護するインメモリストアです。
// PostgreSQL の一意制約と同じ条件で重複を拒否します。
type MemStore struct {
	mu          sync.Mutex
	employees   map[string]*employee.Employee
	departments []*employee.Department
	documents   map[string]*document.Document
	records     map[[2]string]*ledger.Record
	seq         int

	// Fail が設定されている間、すべての操作は ErrUnavailable を返します。
	Fail bool
	// Writes は成功した書き込み操作の回数です。
	Writes int
}

// NewMemStore は空の MemStore を生成します。
func NewMemStore() *MemStore {
	return &MemStore{
		employees: make(map[string]*employee.Employee),
		documents: make(map[string]*document.Document),
		records:   make(map[[2]string]*ledger.Record),
	}
}

// SetFail は障害モードを切り替えます。
func (s *MemStore) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail = fail
}

// WriteCount は成功した書き込み回数を返します。
func (s *MemStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Writes
}

// AddDepartment は部署を追加します。
func (s *MemStore) AddDepartment(id, name string) *employee.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &employee.Department{ID: id, Name: name}
	s.departments = append(s.departments, d)
	return d
}

// AddEmployee は社員を追加します。
func (s *MemStore) AddEmployee(e *employee.Employee) *employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = cloneEmployee(e)
	return cloneEmployee(e)
}

// AddDocument は文書を追加します。Code が空の場合は ID を使います。
func (s *MemStore) AddDocument(d *document.Document) *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *d
	if clone.Code == "" {
		clone.Code = clone.ID
	}
	s.documents[clone.ID] = &clone
	out := clone
	return &out
}

// Employee はテスト検証用に社員を直接取得します。
func (s *MemStore) Employee(id string) *employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEmployee(s.employees[id])
}

// HasDocument はテスト検証用に文書の存在を返します。
func (s *MemStore) HasDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[id]
	return ok
}

// RecordCount は記録の総数を返します。
func (s *MemStore) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Employees は employee.Repository としてのビューを返します。
func (s *MemStore) Employees() employee.Repository { return employeeView{s} }

// Departments は部署リポジトリとしてのビューを返します。
func (s *MemStore) Departments() DepartmentView { return DepartmentView{s} }

// Documents は document.Store としてのビューを返します。
func (s *MemStore) Documents() document.Store { return documentView{s} }

// Records は ledger.Repository としてのビューを返します。
func (s *MemStore) Records() ledger.Repository { return recordView{s} }

func (s *MemStore) lock() error {
	s.mu.Lock()
	if s.Fail {
		s.mu.Unlock()
		return ErrUnavailable
	}
	return nil
}

type employeeView struct{ s *MemStore }

func (v employeeView) FindByID(_ context.Context, id string) (*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	e, ok := v.s.employees[id]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	return cloneEmployee(e), nil
}

func (v employeeView) FindByNumber(_ context.Context, number string) (*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	for _, e := range v.s.employees {
		if e.Number == number {
			return cloneEmployee(e), nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

func (v employeeView) FindByExternalID(_ context.Context, externalID string) (*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	for _, e := range v.s.employees {
		if e.BoundTo(externalID) {
			return cloneEmployee(e), nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

func (v employeeView) ListByDepartment(_ context.Context, departmentID string) ([]*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	var out []*employee.Employee
	for _, e := range v.s.employees {
		if e.DepartmentID == departmentID {
			out = append(out, cloneEmployee(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (v employeeView) Update(_ context.Context, in employee.UpdateFields) (*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	e, ok := v.s.employees[in.ID]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	if in.DepartmentID != nil {
		e.DepartmentID = *in.DepartmentID
	}
	if in.WorkPhone != nil {
		e.WorkPhone = *in.WorkPhone
	}
	e.UpdatedAt = in.UpdatedAt
	v.s.Writes++
	return cloneEmployee(e), nil
}

func (v employeeView) BindExternalID(_ context.Context, employeeID, externalID string, at time.Time) (*employee.Employee, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	e, ok := v.s.employees[employeeID]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	if e.ExternalID != nil && *e.ExternalID != externalID {
		return nil, employee.ErrExternalIDConflict
	}
	for _, other := range v.s.employees {
		if other.ID != employeeID && other.BoundTo(externalID) {
			return nil, employee.ErrExternalIDConflict
		}
	}
	id := externalID
	e.ExternalID = &id
	e.Registered = true
	e.UpdatedAt = at
	v.s.Writes++
	return cloneEmployee(e), nil
}

// DepartmentView は employee.DepartmentRepository と document.DepartmentLister を満たします。
type DepartmentView struct{ s *MemStore }

func (v DepartmentView) FindByID(_ context.Context, id string) (*employee.Department, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	for _, d := range v.s.departments {
		if d.ID == id {
			clone := *d
			return &clone, nil
		}
	}
	return nil, employee.ErrDepartmentNotFound
}

func (v DepartmentView) List(_ context.Context) ([]*employee.Department, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	out := make([]*employee.Department, len(v.s.departments))
	for i, d := range v.s.departments {
		clone := *d
		out[i] = &clone
	}
	return out, nil
}

func (v DepartmentView) ListDepartmentIDs(ctx context.Context) ([]string, error) {
	depts, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(depts))
	for i, d := range depts {
		ids[i] = d.ID
	}
	return ids, nil
}

type documentView struct{ s *MemStore }

func (v documentView) Get(_ context.Context, id string) (*document.Document, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	d, ok := v.s.documents[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	clone := *d
	return &clone, nil
}

func (v documentView) FindByCode(_ context.Context, code string) (*document.Document, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	for _, d := range v.s.documents {
		if d.Code == code {
			clone := *d
			return &clone, nil
		}
	}
	return nil, document.ErrDocumentNotFound
}

func (v documentView) ListByDepartment(_ context.Context, departmentID string) ([]*document.Document, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	var out []*document.Document
	for _, d := range v.s.documents {
		if d.DepartmentID == departmentID {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v documentView) Create(_ context.Context, d *document.Document) (*document.Document, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	if _, ok := v.s.documents[d.ID]; ok {
		return nil, fmt.Errorf("testutil: duplicate document %s", d.ID)
	}
	clone := *d
	v.s.documents[d.ID] = &clone
	v.s.Writes++
	out := clone
	return &out, nil
}

type recordView struct{ s *MemStore }

func (v recordView) InsertIfAbsent(_ context.Context, rec *ledger.Record) (*ledger.Record, bool, error) {
	if err := v.s.lock(); err != nil {
		return nil, false, err
	}
	defer v.s.mu.Unlock()
	key := [2]string{rec.EmployeeID, rec.DocumentID}
	if existing, ok := v.s.records[key]; ok {
		clone := *existing
		return &clone, false, nil
	}
	v.s.seq++
	clone := *rec
	clone.ID = fmt.Sprintf("ack-%d", v.s.seq)
	v.s.records[key] = &clone
	v.s.Writes++
	out := clone
	return &out, true, nil
}

func (v recordView) Find(_ context.Context, employeeID, documentID string) (*ledger.Record, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	rec, ok := v.s.records[[2]string{employeeID, documentID}]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (v recordView) CountReaders(_ context.Context, documentID string) (int, error) {
	if err := v.s.lock(); err != nil {
		return 0, err
	}
	defer v.s.mu.Unlock()
	n := 0
	for key := range v.s.records {
		if key[1] == documentID {
			n++
		}
	}
	return n, nil
}

func (v recordView) ReadDocumentIDs(_ context.Context, employeeID string, documentIDs []string) (map[string]struct{}, error) {
	if err := v.s.lock(); err != nil {
		return nil, err
	}
	defer v.s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range documentIDs {
		if _, ok := v.s.records[[2]string{employeeID, id}]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func cloneEmployee(e *employee.Employee) *employee.Employee {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ExternalID != nil {
		id := *e.ExternalID
		clone.ExternalID = &id
	}
	return &clone
}
