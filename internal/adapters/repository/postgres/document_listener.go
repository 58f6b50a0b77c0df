package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DocumentCreatedChannel は文書作成トリガーが通知するチャネル名です。
const DocumentCreatedChannel = "document_created"

// NotificationConn は LISTEN 用に専有する 1 本の接続です。
type NotificationConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

// Connector は NotificationConn を取得します。
type Connector func(ctx context.Context) (NotificationConn, error)

type poolConn struct {
	conn *pgxpool.Conn
}

func (c poolConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c poolConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.conn.Conn().WaitForNotification(ctx)
}

func (c poolConn) Release() {
	c.conn.Release()
}

// PoolConnector はプールから接続を借りる Connector を返します。
func PoolConnector(pool *pgxpool.Pool) Connector {
	return func(ctx context.Context) (NotificationConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolConn{conn: conn}, nil
	}
}

// catchUpLimit は再接続時に 1 回で拾い直す未通知文書の上限です。
const catchUpLimit = 500

// Backlog は通知が完了していない文書を管理します。
type Backlog interface {
	ListUnnotifiedIDs(ctx context.Context, limit int) ([]string, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// DocumentHandler は文書 ID を受け取り通知を配信します。エラーの場合は未通知のまま残ります。
type DocumentHandler func(ctx context.Context, documentID string) error

// DocumentListener は document_created を購読し、通知された文書 ID ごとに handle を呼びます。
// NOTIFY は購読していない間は失われるため、接続のたびに未通知の文書を拾い直します。
type DocumentListener struct {
	connect Connector
	backlog Backlog
	handle  DocumentHandler
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewDocumentListener は DocumentListener を生成します。
func NewDocumentListener(connect Connector, backlog Backlog, handle DocumentHandler, logger *zap.Logger) *DocumentListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentListener{
		connect: connect,
		backlog: backlog,
		handle:  handle,
		backoff: 2 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.Named("document_listener"),
	}
}

// Run は ctx がキャンセルされるまで購読を続けます。接続が切れた場合は待機して再接続します。
func (l *DocumentListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("document listener disconnected", zap.Error(err), zap.Duration("retry_in", l.backoff))

		t := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (l *DocumentListener) listen(ctx context.Context) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+DocumentCreatedChannel); err != nil {
		return fmt.Errorf("postgres: listen %s: %w", DocumentCreatedChannel, err)
	}
	l.logger.Info("listening for new documents", zap.String("channel", DocumentCreatedChannel))

	// LISTEN 後に拾い直した文書は、直後に届く同じ通知では再配信しない。
	seen, err := l.catchUp(ctx)
	if err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("postgres: wait for notification: %w", err)
		}
		if n.Channel != DocumentCreatedChannel || n.Payload == "" {
			continue
		}
		if _, ok := seen[n.Payload]; ok {
			delete(seen, n.Payload)
			continue
		}
		l.deliver(ctx, n.Payload)
	}
}

func (l *DocumentListener) catchUp(ctx context.Context) (map[string]struct{}, error) {
	ids, err := l.backlog.ListUnnotifiedIDs(ctx, catchUpLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unnotified documents: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}
	l.logger.Info("dispatching documents missed while not listening", zap.Int("count", len(ids)))
	if len(ids) == catchUpLimit {
		l.logger.Warn("more unnotified documents remain until the next reconnect", zap.Int("limit", catchUpLimit))
	}

	for _, id := range ids {
		seen[id] = struct{}{}
		l.deliver(ctx, id)
	}
	return seen, nil
}

func (l *DocumentListener) deliver(ctx context.Context, id string) {
	if err := l.handle(ctx, id); err != nil {
		l.logger.Error("document left unnotified", zap.String("document_id", id), zap.Error(err))
		return
	}
	if err := l.backlog.MarkNotified(ctx, id, l.now()); err != nil {
		l.logger.Error("failed to mark document notified", zap.String("document_id", id), zap.Error(err))
	}
}
