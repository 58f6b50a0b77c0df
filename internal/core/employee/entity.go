package employee

import (
	"strings"
	"time"
)

// Role は管理画面での権限区分です。ボット側の処理には影響しません。
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Employee は社員エンティティです。
// ExternalID は登録完了時にチャットの利用者 ID が紐づくまで nil です。
type Employee struct {
	ID           string
	Number       string
	LastName     string
	FirstName    string
	MiddleName   string
	DepartmentID string
	Position     string
	WorkPhone    string
	Email        string
	ExternalID   *string
	Registered   bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName は姓・名・ミドルネームを空白区切りで返します。
func (e *Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.LastName, e.FirstName, e.MiddleName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// BoundTo は社員が指定の外部 ID に紐づいているかを返します。
func (e *Employee) BoundTo(externalID string) bool {
	return e.ExternalID != nil && *e.ExternalID == externalID
}

// Reachable は通知の宛先になれる（登録済みかつ外部 ID あり）かを返します。
func (e *Employee) Reachable() bool {
	return e.Registered && e.ExternalID != nil && *e.ExternalID != ""
}

// Department は部署エンティティです。コアからは読み取り専用です。
type Department struct {
	ID   string
	Name string
}
