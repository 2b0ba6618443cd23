package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// IngestLockID は取り込みトランザクションを直列化するロックID
var IngestLockID = LockID("course-rag", "ingest")

// LockID は文字列からアドバイザリロックIDを生成する
func LockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return int64(binary.BigEndian.Uint64(h.Sum(nil)[:8]))
}

// AdvisoryLocker はトランザクションスコープのアドバイザリロックを取得する。
// ロックはコミットまたはロールバック時に解放される。
type AdvisoryLocker struct {
	tx pgx.Tx
}

// NewAdvisoryLocker はトランザクションからロッカーを生成する
func NewAdvisoryLocker(tx pgx.Tx) *AdvisoryLocker {
	return &AdvisoryLocker{tx: tx}
}

// Acquire は pg_advisory_xact_lock でロックを待機して取得する
func (l *AdvisoryLocker) Acquire(ctx context.Context, lockID int64) error {
	if _, err := l.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
