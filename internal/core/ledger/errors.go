package ledger

import "errors"

var (
	ErrInvalidEmployeeID = errors.New("ledger: invalid employee id")
	ErrInvalidDocumentID = errors.New("ledger: invalid document id")
	ErrRecordNotFound    = errors.New("ledger: record not found")
	// ErrReferenceNotFound は存在しない社員または文書への記録で返却されます。
	ErrReferenceNotFound = errors.New("ledger: employee or document not found")
)
