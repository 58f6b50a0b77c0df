package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txContextKey struct{}

// txStarter は pgxpool.Pool と pgxmock のどちらでも満たせるトランザクション開始口です。
type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// defaultMaxAttempts はシリアライズ失敗とデッドロック時に fn を実行する最大回数です。
const defaultMaxAttempts = 3

// TransactionManager は ctx にトランザクションを載せて各リポジトリへ伝搬させます。
// ネストした呼び出しは外側のトランザクションをそのまま再利用します。
// 最も外側のトランザクションが再試行可能なエラーで失敗した場合は fn ごとやり直します。
type TransactionManager struct {
	pool        txStarter
	maxAttempts int
}

// TxOption は TransactionManager の設定を変更します。
type TxOption func(*TransactionManager)

// WithMaxAttempts は再試行を含めた最大実行回数を設定します。1 未満は 1 として扱います。
func WithMaxAttempts(n int) TxOption {
	return func(m *TransactionManager) {
		if n < 1 {
			n = 1
		}
		m.maxAttempts = n
	}
}

// NewTransactionManager は TransactionManager を生成します。pool が nil の場合は nil を返し、
// nil のマネージャはトランザクションを張らずに fn を実行します。
func NewTransactionManager(pool txStarter, opts ...TxOption) *TransactionManager {
	if pool == nil {
		return nil
	}
	m := &TransactionManager{pool: pool, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithinReadOnly は読み取り専用トランザクション内で fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithinReadWrite は読み書きトランザクション内で fn を実行します。
// fn がエラーを返した場合はロールバックされ、途中の書き込みは残りません。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite}, fn)
}

func (m *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}
	if m == nil {
		return fn(ctx)
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	for attempt := 1; ; attempt++ {
		err := m.runOnce(ctx, opts, fn)
		if err == nil || attempt >= m.maxAttempts || !Retryable(err) || ctx.Err() != nil {
			return err
		}
	}
}

func (m *TransactionManager) runOnce(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		done = true
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	done = true
	return nil
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext はコンテキスト内にトランザクションが存在すればそれを返し、存在しなければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return fallback
}

// Queryer は pgx.Tx および pgxpool.Pool と互換性のあるクエリ実行インターフェースです。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
