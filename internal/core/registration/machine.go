package registration

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/session"
)

// Machine は外部 ID ごとの登録会話を進めるステートマシンです。
// 同じ外部 ID の入力は呼び出し側で直列化されている前提です。
type Machine struct {
	directory employee.Directory
	sessions  session.Store
	logger    *zap.Logger
}

// NewMachine は Machine を生成します。
func NewMachine(directory employee.Directory, sessions session.Store, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		directory: directory,
		sessions:  sessions,
		logger:    logger.Named("registration"),
	}
}

// Active は進行中の登録会話があるかを返します。
func (m *Machine) Active(externalID string) bool {
	_, ok := m.sessions.Get(externalID)
	return ok
}

// Start は登録会話を開始します。既に登録済みの場合はセッションを作りません。
// 進行中の会話があっても番号入力からやり直します。
func (m *Machine) Start(ctx context.Context, externalID string) Result {
	emp, err := m.directory.FindByExternalID(ctx, externalID)
	switch {
	case err == nil && emp.Registered:
		m.sessions.Delete(externalID)
		return Result{Outcome: OutcomeAlreadyRegistered, Step: session.StepDone, Employee: emp}
	case err != nil && !errors.Is(err, employee.ErrEmployeeNotFound):
		return m.unavailable(externalID, "start", err)
	}

	m.sessions.Put(session.Session{ExternalID: externalID, State: session.AwaitingNumber{}})
	m.logger.Debug("registration started", zap.String("external_id", externalID))
	return Result{Outcome: OutcomePrompted, Step: session.StepAwaitingNumber}
}

// Cancel は進行中の登録会話を破棄します。ディレクトリには何も書き込みません。
func (m *Machine) Cancel(externalID string) Result {
	if s, ok := m.sessions.Get(externalID); ok {
		m.sessions.Delete(externalID)
		m.logger.Debug("registration cancelled",
			zap.String("external_id", externalID),
			zap.String("step", string(s.State.Step())),
		)
	}
	return Result{Outcome: OutcomeCancelled, Step: session.StepCancelled}
}

// HandleText は現在の段階に応じてテキスト入力を処理します。
func (m *Machine) HandleText(ctx context.Context, externalID, text string) Result {
	s, ok := m.sessions.Get(externalID)
	if !ok {
		return Result{Outcome: OutcomeNoSession}
	}
	input := strings.TrimSpace(text)

	switch state := s.State.(type) {
	case session.AwaitingNumber:
		return m.handleNumber(ctx, externalID, input)
	case session.AwaitingDepartment:
		return m.handleDepartment(ctx, externalID, state, input)
	case session.AwaitingPhone:
		return m.handlePhone(ctx, externalID, state, input)
	default:
		m.sessions.Delete(externalID)
		return Result{Outcome: OutcomeNoSession}
	}
}

func (m *Machine) handleNumber(ctx context.Context, externalID, number string) Result {
	emp, err := m.directory.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) || errors.Is(err, employee.ErrInvalidNumber) {
			return Result{Outcome: OutcomeRetry, Reason: ReasonUnknownNumber, Step: session.StepAwaitingNumber}
		}
		return m.unavailable(externalID, "number", err)
	}

	if emp.ExternalID != nil && !emp.BoundTo(externalID) {
		m.logger.Info("employee already bound to another identity",
			zap.String("external_id", externalID),
			zap.String("employee_id", emp.ID),
		)
		return Result{Outcome: OutcomeDuplicateIdentity, Step: session.StepAwaitingNumber}
	}

	departments, err := m.directory.ListDepartments(ctx)
	if err != nil {
		return m.unavailable(externalID, "number", err)
	}
	if len(departments) == 0 {
		return m.unavailable(externalID, "number", errors.New("registration: no departments configured"))
	}

	options := make([]session.DepartmentOption, len(departments))
	for i, d := range departments {
		options[i] = session.DepartmentOption{ID: d.ID, Name: d.Name}
	}
	next := session.AwaitingDepartment{EmployeeID: emp.ID, Options: options}
	m.sessions.Put(session.Session{ExternalID: externalID, State: next})

	return Result{
		Outcome:  OutcomeAdvanced,
		Step:     session.StepAwaitingDepartment,
		Employee: emp,
		Options:  next.Names(),
	}
}

func (m *Machine) handleDepartment(ctx context.Context, externalID string, state session.AwaitingDepartment, name string) Result {
	opt, ok := state.Match(name)
	if !ok {
		return Result{
			Outcome: OutcomeRetry,
			Reason:  ReasonUnknownDepartment,
			Step:    session.StepAwaitingDepartment,
			Options: state.Names(),
		}
	}

	emp, err := m.directory.AssignDepartment(ctx, state.EmployeeID, opt.ID)
	if err != nil {
		return m.unavailable(externalID, "department", err)
	}

	m.sessions.Put(session.Session{
		ExternalID: externalID,
		State:      session.AwaitingPhone{EmployeeID: state.EmployeeID, DepartmentName: opt.Name},
	})
	return Result{
		Outcome:    OutcomeAdvanced,
		Step:       session.StepAwaitingPhone,
		Employee:   emp,
		Department: opt.Name,
	}
}

func (m *Machine) handlePhone(ctx context.Context, externalID string, state session.AwaitingPhone, raw string) Result {
	phone, err := employee.NormalizePhone(raw)
	if err != nil {
		return Result{Outcome: OutcomeRetry, Reason: ReasonInvalidPhone, Step: session.StepAwaitingPhone}
	}

	emp, err := m.directory.CompleteRegistration(ctx, employee.CompleteRegistrationInput{
		EmployeeID: state.EmployeeID,
		ExternalID: externalID,
		WorkPhone:  phone,
	})
	switch {
	case errors.Is(err, employee.ErrExternalIDConflict):
		m.sessions.Delete(externalID)
		m.logger.Info("external identity conflict on completion",
			zap.String("external_id", externalID),
			zap.String("employee_id", state.EmployeeID),
		)
		return Result{Outcome: OutcomeDuplicateIdentity, Step: session.StepCancelled}
	case errors.Is(err, employee.ErrInvalidPhone):
		return Result{Outcome: OutcomeRetry, Reason: ReasonInvalidPhone, Step: session.StepAwaitingPhone}
	case err != nil:
		return m.unavailable(externalID, "phone", err)
	}

	m.sessions.Delete(externalID)
	m.logger.Info("registration completed",
		zap.String("external_id", externalID),
		zap.String("employee_id", emp.ID),
	)
	return Result{
		Outcome:    OutcomeCompleted,
		Step:       session.StepDone,
		Employee:   emp,
		Department: state.DepartmentName,
		Phone:      phone,
	}
}

func (m *Machine) unavailable(externalID, step string, err error) Result {
	m.logger.Error("employee directory unavailable",
		zap.String("external_id", externalID),
		zap.String("step", step),
		zap.Error(err),
	)
	current := session.Step("")
	if s, ok := m.sessions.Get(externalID); ok {
		current = s.State.Step()
	}
	return Result{Outcome: OutcomeUnavailable, Step: current}
}
