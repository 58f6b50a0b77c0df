package ledger

import (
	"context"

	"github.com/ogurasousui/docack/internal/core/document"
)

// Repository は確認記録の永続化の抽象です。
type Repository interface {
	// InsertIfAbsent は (EmployeeID, DocumentID) の一意制約のもとで記録を挿入します。
	// 既に記録があれば挿入せずに既存の記録と false を返します。同時実行でも記録は 1 件です。
	InsertIfAbsent(ctx context.Context, rec *Record) (*Record, bool, error)
	Find(ctx context.Context, employeeID, documentID string) (*Record, error)
	CountReaders(ctx context.Context, documentID string) (int, error)
	// ReadDocumentIDs は documentIDs のうち社員が確認済みのものを返します。
	ReadDocumentIDs(ctx context.Context, employeeID string, documentIDs []string) (map[string]struct{}, error)
}

// MemberCounter は部署の所属人数（登録状態を問わない）を返します。
type MemberCounter interface {
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}

// DocumentLister は部署の文書と文書単体の参照を提供します。
type DocumentLister interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*document.Document, error)
}
