package testutil

import (
	"time"

	"github.com/ogurasousui/docack/internal/core/employee"
)

// StubClock は固定時刻を返す Clock です。
type StubClock struct {
	T time.Time
}

// Now は固定時刻を返します。
func (c StubClock) Now() time.Time { return c.T }

// RegisteredEmployee は外部 ID に紐づいた登録済み社員を作ります。
func RegisteredEmployee(id, number, departmentID, externalID string) *employee.Employee {
	ext := externalID
	return &employee.Employee{
		ID:           id,
		Number:       number,
		LastName:     "Employee",
		FirstName:    number,
		DepartmentID: departmentID,
		ExternalID:   &ext,
		Registered:   true,
		Role:         employee.RoleStaff,
	}
}

// PendingEmployee は未登録の社員を作ります。
func PendingEmployee(id, number, departmentID string) *employee.Employee {
	return &employee.Employee{
		ID:           id,
		Number:       number,
		LastName:     "Employee",
		FirstName:    number,
		DepartmentID: departmentID,
		Role:         employee.RoleStaff,
	}
}
