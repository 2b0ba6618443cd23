package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/jinford/course-rag/internal/core/catalog"
	"github.com/jinford/course-rag/internal/infra/postgres/sqlc"
)

// Repository は catalog.Repository インターフェースを実装する PostgreSQL リポジトリです
type Repository struct {
	q sqlc.Querier
}

// NewRepository は新しい Repository を作成します
func NewRepository(q sqlc.Querier) *Repository {
	return &Repository{q: q}
}

// コンパイル時の型チェック
var _ catalog.Repository = (*Repository)(nil)

// === Course ===

func (r *Repository) CreateCourse(ctx context.Context, course *catalog.Course) (*catalog.Course, error) {
	row, err := r.q.CreateCourse(ctx, sqlc.CreateCourseParams{
		Code:        course.Code,
		Name:        course.Name,
		Description: StringPtrToPgtext(course.Description),
		Keywords:    StringPtrToPgtext(course.Keywords),
		Embedding:   VectorToPgvector(course.Embedding),
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrDuplicateCode, course.Code)
		}
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	return courseFromRow(row), nil
}

func (r *Repository) GetCourseByCode(ctx context.Context, code string) (mo.Option[*catalog.Course], error) {
	row, err := r.q.GetCourseByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*catalog.Course](), nil
		}
		return mo.None[*catalog.Course](), fmt.Errorf("failed to get course: %w", err)
	}

	return mo.Some(courseFromRow(row)), nil
}

func (r *Repository) ListCourses(ctx context.Context) ([]*catalog.CourseSummary, error) {
	rows, err := r.q.ListCoursesWithContentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	courses := make([]*catalog.CourseSummary, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, &catalog.CourseSummary{
			ID:           PgtypeToUUID(row.ID),
			Code:         row.Code,
			Name:         row.Name,
			ContentCount: int(row.ContentCount),
			CreatedAt:    PgtypeToTime(row.CreatedAt),
		})
	}

	return courses, nil
}

// === CourseContent ===

func (r *Repository) CreateCourseContent(ctx context.Context, content *catalog.CourseContent) (*catalog.CourseContent, error) {
	weekNumber, err := IntToInt32(content.WeekNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: week_number: %v", catalog.ErrInvalidInput, err)
	}

	row, err := r.q.CreateCourseContent(ctx, sqlc.CreateCourseContentParams{
		CourseID:   UUIDToPgtype(content.CourseID),
		WeekNumber: weekNumber,
		Topic:      content.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create course content: %w", err)
	}

	return contentFromRow(row), nil
}

func (r *Repository) ListCourseContents(ctx context.Context, courseID uuid.UUID) ([]*catalog.CourseContent, error) {
	rows, err := r.q.ListCourseContents(ctx, UUIDToPgtype(courseID))
	if err != nil {
		return nil, fmt.Errorf("failed to list course contents: %w", err)
	}

	contents := make([]*catalog.CourseContent, 0, len(rows))
	for _, row := range rows {
		contents = append(contents, contentFromRow(row))
	}

	return contents, nil
}

// === Search ===

func (r *Repository) SearchCourses(ctx context.Context, queryVector []float32, limit int) ([]*catalog.SearchResult, error) {
	rows, err := r.q.SearchCourses(ctx, sqlc.SearchCoursesParams{
		QueryVector: VectorToPgvector(queryVector),
		RowLimit:    int32(max(1, min(limit, catalog.MaxSearchLimit))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}

	results := make([]*catalog.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &catalog.SearchResult{
			CourseID:    PgtypeToUUID(row.ID),
			Code:        row.Code,
			Name:        row.Name,
			Description: PgtextToStringPtr(row.Description),
			Similarity:  row.Similarity,
		})
	}

	return results, nil
}

func courseFromRow(row sqlc.Course) *catalog.Course {
	return &catalog.Course{
		ID:          PgtypeToUUID(row.ID),
		Code:        row.Code,
		Name:        row.Name,
		Description: PgtextToStringPtr(row.Description),
		Keywords:    PgtextToStringPtr(row.Keywords),
		Embedding:   PgvectorToSlice(row.Embedding),
		CreatedAt:   PgtypeToTime(row.CreatedAt),
	}
}

func contentFromRow(row sqlc.CourseContent) *catalog.CourseContent {
	return &catalog.CourseContent{
		ID:         PgtypeToUUID(row.ID),
		CourseID:   PgtypeToUUID(row.CourseID),
		WeekNumber: int(row.WeekNumber),
		Topic:      row.Topic,
	}
}
