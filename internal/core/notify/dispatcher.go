package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
)

// Notifier は外部 ID 宛てにテキストを送る配信手段です。
type Notifier interface {
	Notify(ctx context.Context, externalID, text string) error
}

// RecipientLister は部署内の通知可能な社員を返します。
type RecipientLister interface {
	ListRecipients(ctx context.Context, departmentID string) ([]*employee.Employee, error)
}

// DocumentGetter は ID で文書を取得します。
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*document.Document, error)
}

// Formatter は通知本文を組み立てます。
type Formatter func(doc *document.Document) string

// Options は Dispatcher の動作設定です。ゼロ値の項目には既定値が入ります。
type Options struct {
	Workers      int
	MaxAttempts  int
	SendTimeout  time.Duration
	RetryBackoff time.Duration
	Format       Formatter
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.Format == nil {
		o.Format = defaultFormat
	}
	return o
}

func defaultFormat(doc *document.Document) string {
	return fmt.Sprintf("%s (%s), %s", doc.Title, doc.Kind, doc.DeadlineDate())
}

// Dispatcher は新着文書を部署内の登録済み社員へ配信します。
type Dispatcher struct {
	recipients RecipientLister
	documents  DocumentGetter
	notifier   Notifier
	opts       Options
	logger     *zap.Logger

	documentsTotal atomic.Int64
	deliveredTotal atomic.Int64
	failedTotal    atomic.Int64
}

// NewDispatcher は Dispatcher を生成します。
func NewDispatcher(recipients RecipientLister, documents DocumentGetter, notifier Notifier, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		recipients: recipients,
		documents:  documents,
		notifier:   notifier,
		opts:       opts.withDefaults(),
		logger:     logger.Named("notify"),
	}
}

// DispatchByID は文書を読み込んでから Dispatch します。
func (d *Dispatcher) DispatchByID(ctx context.Context, documentID string) (*Report, error) {
	id := strings.TrimSpace(documentID)
	if id == "" {
		return nil, ErrInvalidDocument
	}
	doc, err := d.documents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("notify: load document %s: %w", id, err)
	}
	return d.Dispatch(ctx, doc)
}

// Dispatch は文書の部署の通知可能な社員全員に 1 件ずつ配信します。
// 宛先ごとの失敗はエラーにせず Report に記録します。文書には一切触れません。
func (d *Dispatcher) Dispatch(ctx context.Context, doc *document.Document) (*Report, error) {
	if doc == nil || doc.DepartmentID == "" {
		return nil, ErrInvalidDocument
	}

	recipients, err := d.recipients.ListRecipients(ctx, doc.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("notify: list recipients: %w", err)
	}

	text := d.opts.Format(doc)
	report := &Report{DocumentID: doc.ID, Recipients: len(recipients)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.opts.Workers)

	for _, r := range recipients {
		g.Go(func() error {
			attempts, err := d.deliver(ctx, *r.ExternalID, text)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, Failure{
					EmployeeID: r.ID,
					ExternalID: *r.ExternalID,
					Attempts:   attempts,
					Err:        err,
				})
				d.logger.Warn("notification delivery failed",
					zap.String("document_id", doc.ID),
					zap.String("employee_id", r.ID),
					zap.Int("attempts", attempts),
					zap.Error(err),
				)
				return nil
			}
			report.Delivered++
			return nil
		})
	}
	_ = g.Wait()

	d.documentsTotal.Add(1)
	d.deliveredTotal.Add(int64(report.Delivered))
	d.failedTotal.Add(int64(report.Failed))

	d.logger.Info("document notification dispatched",
		zap.String("document_id", doc.ID),
		zap.String("department_id", doc.DepartmentID),
		zap.Int("recipients", report.Recipients),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Totals は累計の配信結果を返します。
func (d *Dispatcher) Totals() Totals {
	return Totals{
		Documents: d.documentsTotal.Load(),
		Delivered: d.deliveredTotal.Load(),
		Failed:    d.failedTotal.Load(),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, externalID, text string) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*d.opts.RetryBackoff); err != nil {
				return attempt - 1, lastErr
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		err := d.notifier.Notify(attemptCtx, externalID, text)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if errors.Is(err, ErrRecipientUnreachable) || ctx.Err() != nil {
			return attempt, err
		}
	}
	return d.opts.MaxAttempts, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
