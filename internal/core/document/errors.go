package document

import "errors"

var (
	ErrInvalidID           = errors.New("document: invalid id")
	ErrInvalidTitle        = errors.New("document: invalid title")
	ErrInvalidKind         = errors.New("document: invalid kind")
	ErrInvalidDeadline     = errors.New("document: invalid deadline")
	ErrInvalidDepartmentID = errors.New("document: invalid department id")
	ErrDocumentNotFound    = errors.New("document: not found")
	ErrDepartmentNotFound  = errors.New("document: department not found")
	ErrNoDepartments       = errors.New("document: no departments to publish to")
	ErrCodeConflict        = errors.New("document: code already exists")
	// ErrMalformedCode はコードの中身が文書識別子の形式でない場合に返却されます。
	ErrMalformedCode = errors.New("document: malformed code")
)
