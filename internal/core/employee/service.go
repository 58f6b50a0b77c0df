package employee

import (
	"context"
	"fmt"
	"regexp"
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
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const maxPhoneLength = 20

var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ()\-]*$`)

// Directory は社員ディレクトリのユースケースです。登録ステートマシン・読み取り確認・通知配信から使われます。
type Directory interface {
	FindByNumber(ctx context.Context, number string) (*Employee, error)
	FindByExternalID(ctx context.Context, externalID string) (*Employee, error)
	ListDepartments(ctx context.Context) ([]*Department, error)
	ListRecipients(ctx context.Context, departmentID string) ([]*Employee, error)
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
	AssignDepartment(ctx context.Context, employeeID, departmentID string) (*Employee, error)
	CompleteRegistration(ctx context.Context, in CompleteRegistrationInput) (*Employee, error)
}

// Service は Directory の実装です。
type Service struct {
	repo        Repository
	departments DepartmentRepository
	clock       Clock
	tx          TransactionManager
}

// NewService は Service を生成します。
func NewService(repo Repository, departments DepartmentRepository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, departments: departments, clock: clock, tx: tx}
}

// CompleteRegistrationInput は登録完了時の入力です。
type CompleteRegistrationInput struct {
	EmployeeID string
	ExternalID string
	WorkPhone  string
}

// FindByNumber は社員番号の完全一致で社員を取得します。
func (s *Service) FindByNumber(ctx context.Context, number string) (*Employee, error) {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return nil, ErrInvalidNumber
	}

	var found *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		emp, err := s.repo.FindByNumber(txCtx, trimmed)
		if err != nil {
			return err
		}
		found = emp
		return nil
	}); err != nil {
		return nil, err
	}
	return found, nil
}

// FindByExternalID は外部 ID に紐づく社員を取得します。
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*Employee, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return nil, ErrInvalidExternalID
	}
	return s.repo.FindByExternalID(ctx, id)
}

// ListDepartments は選択肢として提示する部署一覧を返します。
func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

// ListRecipients は部署内で通知可能な社員（登録済みかつ外部 ID あり）を返します。
func (s *Service) ListRecipients(ctx context.Context, departmentID string) ([]*Employee, error) {
	members, err := s.listMembers(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	recipients := make([]*Employee, 0, len(members))
	for _, m := range members {
		if m.Reachable() {
			recipients = append(recipients, m)
		}
	}
	return recipients, nil
}

// CountByDepartment は登録状態に関係なく部署の所属人数を返します。
func (s *Service) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	members, err := s.listMembers(ctx, departmentID)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (s *Service) listMembers(ctx context.Context, departmentID string) ([]*Employee, error) {
	id := strings.TrimSpace(departmentID)
	if id == "" {
		return nil, ErrInvalidDepartmentID
	}
	return s.repo.ListByDepartment(ctx, id)
}

// AssignDepartment は社員の部署を即時に更新します。
func (s *Service) AssignDepartment(ctx context.Context, employeeID, departmentID string) (*Employee, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	deptID := strings.TrimSpace(departmentID)
	if deptID == "" {
		return nil, ErrInvalidDepartmentID
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.departments.FindByID(txCtx, deptID); err != nil {
			return err
		}
		result, err := s.repo.Update(txCtx, UpdateFields{
			ID:           employeeID,
			DepartmentID: &deptID,
			UpdatedAt:    s.clock.Now(),
		})
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteRegistration は電話番号の保存・外部 ID の紐づけ・登録済みへの変更を一つのトランザクションで行います。
func (s *Service) CompleteRegistration(ctx context.Context, in CompleteRegistrationInput) (*Employee, error) {
	if strings.TrimSpace(in.EmployeeID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, ErrInvalidExternalID
	}
	phone, err := NormalizePhone(in.WorkPhone)
	if err != nil {
		return nil, err
	}

	var registered *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		if _, err := s.repo.Update(txCtx, UpdateFields{
			ID:        in.EmployeeID,
			WorkPhone: &phone,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		result, err := s.repo.BindExternalID(txCtx, in.EmployeeID, externalID, now)
		if err != nil {
			return err
		}
		registered = result
		return nil
	}); err != nil {
		return nil, err
	}
	return registered, nil
}

// NormalizePhone は前後の空白を除いた勤務先電話番号を検証して返します。
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxPhoneLength {
		return "", ErrInvalidPhone
	}
	if !phonePattern.MatchString(trimmed) || !strings.ContainsAny(trimmed, "0123456789") {
		return "", ErrInvalidPhone
	}
	return trimmed, nil
}
