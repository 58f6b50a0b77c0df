package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ogurasousui/docack/internal/core/document"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Ledger は確認記録のユースケースです。読み取り確認パイプラインと統計表示から使われます。
type Ledger interface {
	RecordIfAbsent(ctx context.Context, employeeID, documentID string, at time.Time) (*Outcome, error)
	HasRead(ctx context.Context, employeeID, documentID string) (bool, error)
	CountReaders(ctx context.Context, documentID string) (int, error)
	CountEligible(ctx context.Context, documentID string) (int, error)
	Progress(ctx context.Context, documentID string) (*Progress, error)
	Summary(ctx context.Context, employeeID, departmentID string) (*Summary, error)
	Unread(ctx context.Context, employeeID, departmentID string) ([]*document.Document, error)
}

// Service は Ledger の実装です。
type Service struct {
	repo    Repository
	docs    DocumentLister
	members MemberCounter
	clock   Clock
}

// NewService は Service を生成します。
func NewService(repo Repository, docs DocumentLister, members MemberCounter, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, docs: docs, members: members, clock: clock}
}

// RecordIfAbsent は確認記録を作成します。既に記録がある場合は作成せず既存の記録を返します。
// at がゼロ値の場合は現在時刻を使います。
func (s *Service) RecordIfAbsent(ctx context.Context, employeeID, documentID string, at time.Time) (*Outcome, error) {
	empID, docID, err := normalizePair(employeeID, documentID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.clock.Now()
	}

	rec, created, err := s.repo.InsertIfAbsent(ctx, &Record{
		EmployeeID:  empID,
		DocumentID:  docID,
		Confirmed:   true,
		ConfirmedAt: at,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Created: created, Record: rec}, nil
}

// HasRead は社員が文書を確認済みかを返します。
func (s *Service) HasRead(ctx context.Context, employeeID, documentID string) (bool, error) {
	empID, docID, err := normalizePair(employeeID, documentID)
	if err != nil {
		return false, err
	}
	if _, err := s.repo.Find(ctx, empID, docID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountReaders は文書を確認した社員数を返します。
func (s *Service) CountReaders(ctx context.Context, documentID string) (int, error) {
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return 0, ErrInvalidDocumentID
	}
	return s.repo.CountReaders(ctx, docID)
}

// CountEligible は文書の部署に所属する社員数を返します。登録状態は問いません。
func (s *Service) CountEligible(ctx context.Context, documentID string) (int, error) {
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return 0, ErrInvalidDocumentID
	}
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return 0, err
	}
	return s.members.CountByDepartment(ctx, doc.DepartmentID)
}

// Progress は文書の確認人数と対象人数をまとめて返します。
func (s *Service) Progress(ctx context.Context, documentID string) (*Progress, error) {
	readers, err := s.CountReaders(ctx, documentID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.CountEligible(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &Progress{DocumentID: strings.TrimSpace(documentID), Readers: readers, Eligible: eligible}, nil
}

// Summary は社員の所属部署の文書のうち確認済みの件数を返します。
func (s *Service) Summary(ctx context.Context, employeeID, departmentID string) (*Summary, error) {
	docs, read, err := s.departmentState(ctx, employeeID, departmentID)
	if err != nil {
		return nil, err
	}
	return &Summary{Total: len(docs), Read: len(read)}, nil
}

// Unread は社員の所属部署の文書のうち未確認のものを締切順で返します。
func (s *Service) Unread(ctx context.Context, employeeID, departmentID string) ([]*document.Document, error) {
	docs, read, err := s.departmentState(ctx, employeeID, departmentID)
	if err != nil {
		return nil, err
	}

	unread := make([]*document.Document, 0, len(docs)-len(read))
	for _, d := range docs {
		if _, ok := read[d.ID]; !ok {
			unread = append(unread, d)
		}
	}
	sort.SliceStable(unread, func(i, j int) bool {
		if !unread[i].Deadline.Equal(unread[j].Deadline) {
			return unread[i].Deadline.Before(unread[j].Deadline)
		}
		return unread[i].CreatedAt.Before(unread[j].CreatedAt)
	})
	return unread, nil
}

func (s *Service) departmentState(ctx context.Context, employeeID, departmentID string) ([]*document.Document, map[string]struct{}, error) {
	empID := strings.TrimSpace(employeeID)
	if empID == "" {
		return nil, nil, ErrInvalidEmployeeID
	}
	deptID := strings.TrimSpace(departmentID)
	if deptID == "" {
		return nil, map[string]struct{}{}, nil
	}

	docs, err := s.docs.ListByDepartment(ctx, deptID)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return docs, map[string]struct{}{}, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	read, err := s.repo.ReadDocumentIDs(ctx, empID, ids)
	if err != nil {
		return nil, nil, err
	}
	return docs, read, nil
}

func normalizePair(employeeID, documentID string) (string, string, error) {
	empID := strings.TrimSpace(employeeID)
	if empID == "" {
		return "", "", ErrInvalidEmployeeID
	}
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return "", "", ErrInvalidDocumentID
	}
	return empID, docID, nil
}
