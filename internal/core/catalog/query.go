package catalog

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultSearchLimit は検索件数の既定値
	DefaultSearchLimit = 10
	// MaxSearchLimit は検索件数の上限
	MaxSearchLimit = 1000
)

// QueryService は取り込み済みコースの参照と類似度検索を提供する
type QueryService struct {
	repo      Repository
	embedders EmbedderProvider
}

// NewQueryService は新しい QueryService を作成する
func NewQueryService(repo Repository, embedders EmbedderProvider) *QueryService {
	return &QueryService{
		repo:      repo,
		embedders: embedders,
	}
}

// SearchParams は検索パラメータを表す
type SearchParams struct {
	Query string
	Limit int
}

// List は全コースを返す
func (s *QueryService) List(ctx context.Context) ([]*CourseSummary, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// Show はコードを指定してコースと週ごとのトピックを返す
func (s *QueryService) Show(ctx context.Context, code string) (*Course, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	courseOpt, err := s.repo.GetCourseByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	course, ok := courseOpt.Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, code)
	}

	contents, err := s.repo.ListCourseContents(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list course contents: %w", err)
	}
	course.Contents = contents

	return course, nil
}

// Search はクエリに意味的に近いコースを返す
func (s *QueryService) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	embedder, err := s.embedders.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedder: %w", err)
	}

	// クエリをEmbeddingに変換
	queryVector, err := embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	results, err := s.repo.SearchCourses(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return results, nil
}
