package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
)

// Outcome は読み取り確認の結果種別です。
type Outcome string

const (
	OutcomeConfirmed           Outcome = "confirmed"
	OutcomeAlreadyAcknowledged Outcome = "already_acknowledged"
	OutcomeNotRegistered       Outcome = "not_registered"
	OutcomeNoCodeDetected      Outcome = "no_code_detected"
	OutcomeMalformedCode       Outcome = "malformed_code"
	OutcomeDocumentNotFound    Outcome = "document_not_found"
	OutcomeUnavailable         Outcome = "unavailable"
)

// Result は 1 回の画像投稿に対する結果です。
// Document と ConfirmedAt は Confirmed と AlreadyAcknowledged の場合のみ設定されます。
type Result struct {
	Outcome     Outcome
	Employee    *employee.Employee
	Document    *document.Document
	ConfirmedAt time.Time
}

// Decoder は画像から QR コードの内容を取り出します。コードが見つからない場合は空のスライスを返します。
type Decoder interface {
	Decode(ctx context.Context, image []byte) ([]string, error)
}

// ImageSource は画像本体を取得します。社員の照合が済むまで呼ばれません。
type ImageSource func(ctx context.Context) ([]byte, error)

// EmployeeFinder は外部 ID から社員を引きます。
type EmployeeFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*employee.Employee, error)
}

// DocumentFinder はコードから文書を引きます。
type DocumentFinder interface {
	FindByCode(ctx context.Context, code string) (*document.Document, error)
}

// Recorder は確認記録を冪等に作成します。
type Recorder interface {
	RecordIfAbsent(ctx context.Context, employeeID, documentID string, at time.Time) (*ledger.Outcome, error)
}

// Pipeline は画像から確認記録までの解決処理です。
type Pipeline struct {
	employees EmployeeFinder
	documents DocumentFinder
	ledger    Recorder
	decoder   Decoder
	logger    *zap.Logger
}

// NewPipeline は Pipeline を生成します。
func NewPipeline(employees EmployeeFinder, documents DocumentFinder, recorder Recorder, decoder Decoder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		employees: employees,
		documents: documents,
		ledger:    recorder,
		decoder:   decoder,
		logger:    logger.Named("scan"),
	}
}

// Resolve は投稿された画像を解決し、必要なら確認記録を作成します。
// 拒否の結果では確認記録は変更されません。
func (p *Pipeline) Resolve(ctx context.Context, externalID string, image ImageSource) Result {
	emp, err := p.employees.FindByExternalID(ctx, externalID)
	switch {
	case errors.Is(err, employee.ErrEmployeeNotFound), errors.Is(err, employee.ErrInvalidExternalID):
		return Result{Outcome: OutcomeNotRegistered}
	case err != nil:
		return p.unavailable(externalID, "directory", err)
	case !emp.Registered:
		return Result{Outcome: OutcomeNotRegistered}
	}

	data, err := image(ctx)
	if err != nil {
		return p.unavailable(externalID, "fetch image", err)
	}

	payloads, err := p.decoder.Decode(ctx, data)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return p.unavailable(externalID, "decode", err)
	}
	if err != nil {
		p.logger.Debug("image could not be decoded", zap.String("external_id", externalID), zap.Error(err))
		return Result{Outcome: OutcomeNoCodeDetected, Employee: emp}
	}
	if len(payloads) == 0 {
		return Result{Outcome: OutcomeNoCodeDetected, Employee: emp}
	}

	code, ok := firstValidCode(payloads)
	if !ok {
		return Result{Outcome: OutcomeMalformedCode, Employee: emp}
	}

	doc, err := p.documents.FindByCode(ctx, code)
	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		return Result{Outcome: OutcomeDocumentNotFound, Employee: emp}
	case err != nil:
		return p.unavailable(externalID, "document store", err)
	}

	out, err := p.ledger.RecordIfAbsent(ctx, emp.ID, doc.ID, time.Time{})
	if err != nil {
		return p.unavailable(externalID, "ledger", err)
	}

	res := Result{Employee: emp, Document: doc, ConfirmedAt: out.Record.ConfirmedAt}
	if out.Created {
		res.Outcome = OutcomeConfirmed
		p.logger.Info("document acknowledged",
			zap.String("employee_id", emp.ID),
			zap.String("document_id", doc.ID),
		)
	} else {
		res.Outcome = OutcomeAlreadyAcknowledged
	}
	return res
}

func firstValidCode(payloads []string) (string, bool) {
	for _, p := range payloads {
		if code, err := document.ParseCode(p); err == nil {
			return code, true
		}
	}
	return "", false
}

func (p *Pipeline) unavailable(externalID, stage string, err error) Result {
	p.logger.Error("scan dependency unavailable",
		zap.String("external_id", externalID),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return Result{Outcome: OutcomeUnavailable}
}
