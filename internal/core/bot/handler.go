package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
	"github.com/ogurasousui/docack/internal/core/registration"
	"github.com/ogurasousui/docack/internal/core/scan"
)

// Registrar は登録会話を進めます。
type Registrar interface {
	Start(ctx context.Context, externalID string) registration.Result
	HandleText(ctx context.Context, externalID, text string) registration.Result
	Cancel(externalID string) registration.Result
}

// Resolver は画像から読み取り確認を行います。
type Resolver interface {
	Resolve(ctx context.Context, externalID string, image scan.ImageSource) scan.Result
}

// SelfService は社員本人向けの確認状況を返します。
type SelfService interface {
	Summary(ctx context.Context, employeeID, departmentID string) (*ledger.Summary, error)
	Unread(ctx context.Context, employeeID, departmentID string) ([]*document.Document, error)
}

// EmployeeFinder は外部 ID から社員を引きます。
type EmployeeFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*employee.Employee, error)
}

// Handler は受信イベントを各ユースケースに振り分けて返信を組み立てます。
type Handler struct {
	registrar Registrar
	resolver  Resolver
	stats     SelfService
	employees EmployeeFinder
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHandler は Handler を生成します。timeout が正の値なら 1 イベントの処理時間をその値で打ち切ります。
func NewHandler(registrar Registrar, resolver Resolver, stats SelfService, employees EmployeeFinder, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registrar: registrar,
		resolver:  resolver,
		stats:     stats,
		employees: employees,
		timeout:   timeout,
		logger:    logger.Named("bot"),
	}
}

// Handle は 1 件のイベントを処理します。
func (h *Handler) Handle(ctx context.Context, ev Event) Reply {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	switch ev.Kind {
	case KindStart:
		return registrationReply(h.registrar.Start(ctx, ev.ExternalID))
	case KindCancel:
		return registrationReply(h.registrar.Cancel(ev.ExternalID))
	case KindText:
		return registrationReply(h.registrar.HandleText(ctx, ev.ExternalID, ev.Text))
	case KindImage:
		if ev.Image == nil {
			return Reply{Text: msgNoCode}
		}
		return scanReply(h.resolver.Resolve(ctx, ev.ExternalID, ev.Image))
	case KindStats:
		return h.summary(ctx, ev.ExternalID)
	case KindUnread:
		return h.unread(ctx, ev.ExternalID)
	default:
		return Reply{Text: msgHelp}
	}
}

func (h *Handler) summary(ctx context.Context, externalID string) Reply {
	emp, reply, ok := h.registered(ctx, externalID)
	if !ok {
		return reply
	}
	s, err := h.stats.Summary(ctx, emp.ID, emp.DepartmentID)
	if err != nil {
		h.logger.Error("summary failed", zap.String("employee_id", emp.ID), zap.Error(err))
		return Reply{Text: msgUnavailable}
	}
	return Reply{Text: summaryText(s)}
}

func (h *Handler) unread(ctx context.Context, externalID string) Reply {
	emp, reply, ok := h.registered(ctx, externalID)
	if !ok {
		return reply
	}
	docs, err := h.stats.Unread(ctx, emp.ID, emp.DepartmentID)
	if err != nil {
		h.logger.Error("unread listing failed", zap.String("employee_id", emp.ID), zap.Error(err))
		return Reply{Text: msgUnavailable}
	}
	return Reply{Text: unreadText(docs)}
}

func (h *Handler) registered(ctx context.Context, externalID string) (*employee.Employee, Reply, bool) {
	emp, err := h.employees.FindByExternalID(ctx, externalID)
	switch {
	case errors.Is(err, employee.ErrEmployeeNotFound), errors.Is(err, employee.ErrInvalidExternalID):
		return nil, Reply{Text: msgNotRegistered}, false
	case err != nil:
		h.logger.Error("employee lookup failed", zap.String("external_id", externalID), zap.Error(err))
		return nil, Reply{Text: msgUnavailable}, false
	case !emp.Registered:
		return nil, Reply{Text: msgNotRegistered}, false
	}
	return emp, Reply{}, true
}
