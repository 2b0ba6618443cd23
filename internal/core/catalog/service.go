package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jinford/course-rag/internal/core/embedding"
)

// ProgressFunc はコースがステージングされるたびに呼ばれる（コミット前）
type ProgressFunc func(course *Course)

// IngestService はコース JSON の取り込みユースケースを提供する
type IngestService struct {
	uow            UnitOfWork
	embedders      EmbedderProvider
	trimmer        TokenTrimmer
	maxTokens      int
	batchEmbedding bool
	progress       ProgressFunc
	logger         *slog.Logger
}

type ingestServiceOptions struct {
	trimmer        TokenTrimmer
	maxTokens      int
	batchEmbedding bool
	progress       ProgressFunc
	logger         *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// WithBatchEmbedding は全コースの Embedding を1回の BatchEmbed で生成する
func WithBatchEmbedding(enabled bool) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.batchEmbedding = enabled
	}
}

// WithTokenLimit は Embedding 元テキストを maxTokens に切り詰める（0 は無制限）
func WithTokenLimit(trimmer TokenTrimmer, maxTokens int) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.trimmer = trimmer
		o.maxTokens = maxTokens
	}
}

// WithProgress は進捗コールバックを設定する
func WithProgress(fn ProgressFunc) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.progress = fn
	}
}

// NewIngestService は新しい IngestService を作成する
func NewIngestService(uow UnitOfWork, embedders EmbedderProvider, opts ...IngestServiceOption) *IngestService {
	options := ingestServiceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &IngestService{
		uow:            uow,
		embedders:      embedders,
		trimmer:        options.trimmer,
		maxTokens:      options.maxTokens,
		batchEmbedding: options.batchEmbedding,
		progress:       options.progress,
		logger:         options.logger,
	}
}

// IngestFile はファイルからコースを取り込む
func (s *IngestService) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return s.Ingest(ctx, f)
}

// Ingest は JSON を読み込み、全コースを単一トランザクションで保存する
func (s *IngestService) Ingest(ctx context.Context, r io.Reader) (*IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	descriptors, err := ParseDescriptors(data)
	if err != nil {
		return nil, err
	}

	return s.IngestDescriptors(ctx, descriptors)
}

// IngestDescriptors は解析済みのディスクリプタを取り込む。
// 途中で失敗した場合はロールバックされ、1件も保存されない。
func (s *IngestService) IngestDescriptors(ctx context.Context, descriptors []CourseDescriptor) (*IngestResult, error) {
	startTime := time.Now()

	if len(descriptors) == 0 {
		s.logger.Warn("取り込むコースがありません")
		return &IngestResult{}, nil
	}

	embedder, err := s.embedders.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedder: %w", err)
	}

	s.logger.Info("コースの取り込みを開始",
		"courses", len(descriptors),
		"model", embedder.ModelName(),
		"batch", s.batchEmbedding,
	)

	var vectors [][]float32
	if s.batchEmbedding {
		vectors, err = s.embedAll(ctx, embedder, descriptors)
		if err != nil {
			return nil, err
		}
	}

	courses := make([]*Course, 0, len(descriptors))
	err = s.uow.WithinTx(ctx, func(repo Repository) error {
		for i, d := range descriptors {
			var vector []float32
			if vectors != nil {
				vector = vectors[i]
			}

			course, err := s.stage(ctx, repo, embedder, i, d, vector)
			if err != nil {
				return err
			}
			courses = append(courses, course)

			if s.progress != nil {
				s.progress(course)
			}
		}
		return nil
	})
	if err != nil {
		var descErr *DescriptorError
		var persistErr *PersistenceError
		if !errors.As(err, &descErr) && !errors.As(err, &persistErr) {
			err = &PersistenceError{Op: "transaction", Err: err}
		}
		s.logger.Error("コースの取り込みに失敗、ロールバックしました", "error", err)
		return nil, err
	}

	result := &IngestResult{
		Committed: len(courses),
		Courses:   courses,
		Duration:  time.Since(startTime),
	}

	s.logger.Info("コースの取り込みが完了",
		"committed", result.Committed,
		"duration", result.Duration,
	)

	return result, nil
}

// stage は1コース分を検証・Embedding・保存する
func (s *IngestService) stage(ctx context.Context, repo Repository, embedder embedding.Embedder, index int, d CourseDescriptor, vector []float32) (*Course, error) {
	if err := d.Validate(index); err != nil {
		return nil, err
	}
	code := d.CodeValue()

	if vector == nil {
		text, err := s.sourceText(index, d)
		if err != nil {
			return nil, err
		}
		v, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, &DescriptorError{Index: index, Code: code, Err: err}
		}
		vector = v
	}

	course, err := repo.CreateCourse(ctx, NewCourse(code, d.NameValue(), d.Description, d.Keywords, vector))
	if err != nil {
		return nil, &DescriptorError{Index: index, Code: code, Err: &PersistenceError{Op: "create course", Err: err}}
	}

	for _, entry := range d.Content {
		// Validate 済みのため ordinal と topic は必ず存在する
		ordinal, _ := entry.Ordinal()
		content, err := repo.CreateCourseContent(ctx, NewCourseContent(course.ID, ordinal, *entry.Topic))
		if err != nil {
			return nil, &DescriptorError{Index: index, Code: code, Err: &PersistenceError{Op: "create course content", Err: err}}
		}
		course.Contents = append(course.Contents, content)
	}

	s.logger.Debug("コースをステージング",
		"code", course.Code,
		"id", course.ID,
		"contents", len(course.Contents),
	)

	return course, nil
}

// embedAll は全ディスクリプタを検証し、1回の BatchEmbed で Embedding を生成する
func (s *IngestService) embedAll(ctx context.Context, embedder embedding.Embedder, descriptors []CourseDescriptor) ([][]float32, error) {
	texts := make([]string, len(descriptors))
	for i, d := range descriptors {
		if err := d.Validate(i); err != nil {
			return nil, err
		}
		text, err := s.sourceText(i, d)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	vectors, err := embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed courses: %w", err)
	}
	if len(vectors) != len(descriptors) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", embedding.ErrEmbeddingFailed, len(descriptors), len(vectors))
	}

	return vectors, nil
}

// sourceText は Embedding 元テキストを決定し、必要に応じてトークン上限に切り詰める。
// 優先されたフィールドが空の場合は name にフォールバックせずエラーにする。
func (s *IngestService) sourceText(index int, d CourseDescriptor) (string, error) {
	// Validate 済みのため name が必ず存在する
	text, field, _ := d.EmbeddingText()
	if err := embedding.ValidateText(text); err != nil {
		return "", &DescriptorError{Index: index, Code: d.CodeValue(), Field: field, Err: err}
	}

	if s.trimmer != nil && s.maxTokens > 0 {
		trimmed, ok := s.trimmer.TrimToTokenLimit(text, s.maxTokens)
		if ok {
			s.logger.Warn("Embedding 元テキストをトークン上限で切り詰めました",
				"code", d.CodeValue(),
				"maxTokens", s.maxTokens,
			)
			text = trimmed
		}
	}

	return text, nil
}
