package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/course-rag/internal/core/catalog"
	"github.com/jinford/course-rag/internal/infra/postgres"
	"github.com/jinford/course-rag/internal/infra/postgres/sqlc"
)

// TransactionProvider follows the pattern described in https://threedots.tech/post/database-transactions-in-go/
// It hides pgx transactions behind a callback that receives data-access adapters.
type TransactionProvider struct {
	pool *pgxpool.Pool
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter bundles repository adapters that operate inside a single transaction.
type Adapter struct {
	Courses *postgres.Repository
	Locks   *postgres.AdvisoryLocker
}

func newAdapter(tx pgx.Tx) *Adapter {
	return &Adapter{
		Courses: postgres.NewRepository(sqlc.New(tx)),
		Locks:   postgres.NewAdvisoryLocker(tx),
	}
}

// Transact opens a transaction, builds adapters, and passes them to fn.
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	adapters := newAdapter(tx)

	result, err := fn(adapters)
	if err != nil {
		// 呼び出し元の ctx がキャンセル済みでもロールバックは実行する
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// WithinTx は catalog.UnitOfWork の実装。
// 同時に実行された取り込みはアドバイザリロックで直列化される。
func (p *TransactionProvider) WithinTx(ctx context.Context, fn func(repo catalog.Repository) error) error {
	_, err := Transact(ctx, p, func(adapters *Adapter) (struct{}, error) {
		if err := adapters.Locks.Acquire(ctx, postgres.IngestLockID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, fn(adapters.Courses)
	})
	return err
}

// コンパイル時の型チェック
var _ catalog.UnitOfWork = (*TransactionProvider)(nil)
