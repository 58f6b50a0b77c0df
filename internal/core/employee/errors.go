package employee

import "errors"

var (
	ErrInvalidID           = errors.New("employee: invalid id")
	ErrInvalidNumber       = errors.New("employee: invalid employee number")
	ErrInvalidExternalID   = errors.New("employee: invalid external id")
	ErrInvalidPhone        = errors.New("employee: invalid work phone")
	ErrInvalidDepartmentID = errors.New("employee: invalid department id")
	ErrEmployeeNotFound    = errors.New("employee: not found")
	ErrDepartmentNotFound  = errors.New("employee: department not found")
	// ErrExternalIDConflict は外部 ID が別の社員に、または社員が別の外部 ID に紐づいている場合に返却されます。
	ErrExternalIDConflict = errors.New("employee: external id already bound")
)
