package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// Schema は courses / course_content のスキーマ定義を返す
func Schema() string {
	return schemaSQL
}

// Execer は ApplySchema が必要とする最小のインターフェース
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ApplySchema は拡張・テーブル・インデックスを作成する。既存のものはそのまま残す。
func ApplySchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
