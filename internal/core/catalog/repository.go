package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/course-rag/internal/core/embedding"
)

// Repository はコース関連のデータアクセスを統合するインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	// CreateCourse はコースを挿入し、ストアが採番した ID を設定して返す
	CreateCourse(ctx context.Context, course *Course) (*Course, error)
	CreateCourseContent(ctx context.Context, content *CourseContent) (*CourseContent, error)

	GetCourseByCode(ctx context.Context, code string) (mo.Option[*Course], error)
	ListCourses(ctx context.Context) ([]*CourseSummary, error)
	ListCourseContents(ctx context.Context, courseID uuid.UUID) ([]*CourseContent, error)

	// SearchCourses はコサイン距離の近い順にコースを返す
	SearchCourses(ctx context.Context, queryVector []float32, limit int) ([]*SearchResult, error)
}

// UnitOfWork は fn を単一トランザクション内で実行する。
// fn がエラーを返した場合はロールバックし、そうでなければコミットする。
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// EmbedderProvider は共有 Embedder を返す（embedding.Registry が実装）
type EmbedderProvider interface {
	Get(ctx context.Context) (embedding.Embedder, error)
}

// TokenTrimmer は Embedding 元テキストをトークン上限に収める
type TokenTrimmer interface {
	TrimToTokenLimit(text string, maxTokens int) (string, bool)
}
