package document

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

type fakeStore struct {
	docs      map[string]*Document
	failAfter int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*Document), failAfter: -1}
}

func (s *fakeStore) Get(_ context.Context, id string) (*Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *fakeStore) FindByCode(_ context.Context, code string) (*Document, error) {
	for _, doc := range s.docs {
		if doc.Code == code {
			clone := *doc
			return &clone, nil
		}
	}
	return nil, ErrDocumentNotFound
}

func (s *fakeStore) ListByDepartment(_ context.Context, departmentID string) ([]*Document, error) {
	var out []*Document
	for _, doc := range s.docs {
		if doc.DepartmentID == departmentID {
			clone := *doc
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, doc *Document) (*Document, error) {
	if s.failAfter == len(s.docs) {
		return nil, errors.New("connection refused")
	}
	clone := *doc
	s.docs[doc.ID] = &clone
	out := clone
	return &out, nil
}

type staticDepartments []string

func (d staticDepartments) ListDepartmentIDs(context.Context) ([]string, error) {
	return d, nil
}

// stagedTx は fn が失敗した場合に fakeStore の内容を巻き戻します。
type stagedTx struct {
	store *fakeStore
}

func (tx stagedTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (tx stagedTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	snapshot := make(map[string]*Document, len(tx.store.docs))
	for k, v := range tx.store.docs {
		snapshot[k] = v
	}
	if err := fn(ctx); err != nil {
		tx.store.docs = snapshot
		return err
	}
	return nil
}

func TestService_Publish_SingleDepartment(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	var hooked []*Document
	svc := NewService(store, staticDepartments{"d1"}, &stubClock{now: now}, nil, func(_ context.Context, doc *Document) {
		hooked = append(hooked, doc)
	})

	docs, err := svc.Publish(context.Background(), PublishInput{
		Title:        "  Fire safety  ",
		Kind:         "order",
		Deadline:     time.Date(2025, 4, 15, 18, 30, 0, 0, time.UTC),
		DepartmentID: "d1",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Title != "Fire safety" || doc.DepartmentID != "d1" || doc.Code != doc.ID {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !doc.Deadline.Equal(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected deadline truncated to date, got %v", doc.Deadline)
	}
	if !doc.CreatedAt.Equal(now) {
		t.Fatalf("expected CreatedAt from clock, got %v", doc.CreatedAt)
	}
	if len(hooked) != 1 || hooked[0].ID != doc.ID {
		t.Fatalf("expected hook to run once for %s, got %+v", doc.ID, hooked)
	}
}

func TestService_Publish_AllDepartmentsCreatesRowPerDepartment(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	hooks := 0
	svc := NewService(store, staticDepartments{"d1", "d2", "d3"}, nil, nil, func(context.Context, *Document) { hooks++ })

	docs, err := svc.Publish(context.Background(), PublishInput{
		Title:          "Code of conduct",
		Kind:           "policy",
		Deadline:       time.Now(),
		DepartmentID:   "ignored",
		AllDepartments: true,
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(docs) != 3 || len(store.docs) != 3 {
		t.Fatalf("expected 3 rows, got %d returned and %d stored", len(docs), len(store.docs))
	}
	seen := map[string]bool{}
	for _, d := range docs {
		if seen[d.DepartmentID] {
			t.Fatalf("department %s got two rows", d.DepartmentID)
		}
		seen[d.DepartmentID] = true
	}
	if hooks != 3 {
		t.Fatalf("expected hook per row, got %d", hooks)
	}
}

func TestService_Publish_FailureRollsBackAndSkipsHook(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failAfter = 1
	hooks := 0
	svc := NewService(store, staticDepartments{"d1", "d2"}, nil, stagedTx{store: store}, func(context.Context, *Document) { hooks++ })

	if _, err := svc.Publish(context.Background(), PublishInput{
		Title: "Memo", Kind: "memo", Deadline: time.Now(), AllDepartments: true,
	}); err == nil {
		t.Fatal("expected error from store")
	}
	if len(store.docs) != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", len(store.docs))
	}
	if hooks != 0 {
		t.Fatalf("hook must not run for an uncommitted publication, got %d", hooks)
	}
}

func TestService_Publish_Validation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), staticDepartments{}, nil, nil, nil)
	deadline := time.Now()

	cases := []struct {
		name string
		in   PublishInput
		want error
	}{
		{"title", PublishInput{Kind: "k", Deadline: deadline, DepartmentID: "d"}, ErrInvalidTitle},
		{"kind", PublishInput{Title: "t", Deadline: deadline, DepartmentID: "d"}, ErrInvalidKind},
		{"deadline", PublishInput{Title: "t", Kind: "k", DepartmentID: "d"}, ErrInvalidDeadline},
		{"department", PublishInput{Title: "t", Kind: "k", Deadline: deadline}, ErrInvalidDepartmentID},
		{"no departments", PublishInput{Title: "t", Kind: "k", Deadline: deadline, AllDepartments: true}, ErrNoDepartments},
	}
	for _, tc := range cases {
		if _, err := svc.Publish(context.Background(), tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
