package employee

import (
	"context"
	"time"
)

// Repository は社員ディレクトリ永続化の抽象です。
type Repository interface {
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByNumber(ctx context.Context, number string) (*Employee, error)
	FindByExternalID(ctx context.Context, externalID string) (*Employee, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*Employee, error)
	Update(ctx context.Context, in UpdateFields) (*Employee, error)
	// BindExternalID は外部 ID を紐づけ登録済みにします。既に別の外部 ID が紐づいている場合や
	// 外部 ID が他の社員に使われている場合は ErrExternalIDConflict を返します。
	BindExternalID(ctx context.Context, employeeID, externalID string, at time.Time) (*Employee, error)
}

// DepartmentRepository は部署の参照を提供します。
type DepartmentRepository interface {
	FindByID(ctx context.Context, id string) (*Department, error)
	List(ctx context.Context) ([]*Department, error)
}

// UpdateFields は部分更新の内容です。nil のフィールドは変更しません。
type UpdateFields struct {
	ID           string
	DepartmentID *string
	WorkPhone    *string
	UpdatedAt    time.Time
}
