package document

import "context"

// Store は文書の永続化の抽象です。
type Store interface {
	Get(ctx context.Context, id string) (*Document, error)
	FindByCode(ctx context.Context, code string) (*Document, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*Document, error)
	Create(ctx context.Context, doc *Document) (*Document, error)
}

// DepartmentLister は全部署向け公開の展開先を提供します。
type DepartmentLister interface {
	ListDepartmentIDs(ctx context.Context) ([]string, error)
}
