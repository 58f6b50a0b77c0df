package document

import (
	"context"
	"strings"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// CreatedHook はコミット後に作成された文書 1 行ごとに呼ばれます。
type CreatedHook func(ctx context.Context, doc *Document)

const maxTitleLength = 255

// Service は文書公開のユースケースです。
type Service struct {
	store       Store
	departments DepartmentLister
	clock       Clock
	tx          TransactionManager
	onCreated   CreatedHook
}

// NewService は Service を生成します。onCreated は nil でも構いません。
func NewService(store Store, departments DepartmentLister, clock Clock, tx TransactionManager, onCreated CreatedHook) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{store: store, departments: departments, clock: clock, tx: tx, onCreated: onCreated}
}

// PublishInput は文書公開時の入力です。AllDepartments が真の場合 DepartmentID は無視されます。
type PublishInput struct {
	Title          string
	Kind           string
	Deadline       time.Time
	DepartmentID   string
	AllDepartments bool
}

// Publish は文書を作成します。全部署向けの場合は部署ごとに独立した行を作成し、
// すべて同じトランザクションでコミットします。フックの結果は戻り値に影響しません。
func (s *Service) Publish(ctx context.Context, in PublishInput) ([]*Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, ErrInvalidTitle
	}
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		return nil, ErrInvalidKind
	}
	if in.Deadline.IsZero() {
		return nil, ErrInvalidDeadline
	}
	deadline := time.Date(in.Deadline.Year(), in.Deadline.Month(), in.Deadline.Day(), 0, 0, 0, 0, time.UTC)

	deptID := strings.TrimSpace(in.DepartmentID)
	if !in.AllDepartments && deptID == "" {
		return nil, ErrInvalidDepartmentID
	}

	var created []*Document
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		targets := []string{deptID}
		if in.AllDepartments {
			ids, err := s.departments.ListDepartmentIDs(txCtx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return ErrNoDepartments
			}
			targets = ids
		}

		now := s.clock.Now()
		docs := make([]*Document, 0, len(targets))
		for _, target := range targets {
			id, code := NewCode()
			doc, err := s.store.Create(txCtx, &Document{
				ID:           id,
				DepartmentID: target,
				Title:        title,
				Kind:         kind,
				Deadline:     deadline,
				Code:         code,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		created = docs
		return nil
	}); err != nil {
		return nil, err
	}

	if s.onCreated != nil {
		for _, doc := range created {
			s.onCreated(ctx, doc)
		}
	}

	return created, nil
}

// Get は文書を取得します。
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	return s.store.Get(ctx, strings.TrimSpace(id))
}
