// Package database は PostgreSQL への接続とトランザクションを扱う
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Database はデータベース接続プールを保持します
type Database struct {
	Pool *pgxpool.Pool
}

type poolOptions struct {
	maxConns     int32
	afterConnect func(context.Context, *pgx.Conn) error
	logger       *slog.Logger
}

// PoolOption は接続プールのオプション設定
type PoolOption func(*poolOptions)

// WithMaxConns は最大接続数を設定する（0 以下は pgx の既定値）
func WithMaxConns(n int) PoolOption {
	return func(o *poolOptions) {
		o.maxConns = int32(n)
	}
}

// WithAfterConnect は新しい接続ごとに実行するコールバックを設定する（型登録など）
func WithAfterConnect(fn func(context.Context, *pgx.Conn) error) PoolOption {
	return func(o *poolOptions) {
		o.afterConnect = fn
	}
}

// WithVectorTypes は pgvector の型を各接続に登録する。vector 拡張が必要。
func WithVectorTypes() PoolOption {
	return WithAfterConnect(pgxvec.RegisterTypes)
}

// WithPoolLogger はロガーを設定する
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) {
		o.logger = logger
	}
}

// New は新しいデータベース接続を作成します
func New(ctx context.Context, databaseURL string, opts ...PoolOption) (*Database, error) {
	options := poolOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if options.maxConns > 0 {
		config.MaxConns = options.maxConns
	}
	if options.afterConnect != nil {
		config.AfterConnect = options.afterConnect
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 接続テスト
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	options.logger.Debug("connected to PostgreSQL",
		"host", config.ConnConfig.Host,
		"database", config.ConnConfig.Database,
	)

	return &Database{Pool: pool}, nil
}

// Close はデータベース接続を閉じます
func (db *Database) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}
