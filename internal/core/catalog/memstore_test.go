package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/course-rag/internal/core/embedding"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore はトランザクションを模倣するインメモリのストア
type memStore struct {
	mu        sync.Mutex
	courses   []*Course
	contents  []*CourseContent
	commits   int
	rollbacks int
	failOn    string
}

var errInjected = errors.New("injected failure")

func (m *memStore) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memRepo{
		store:    m,
		courses:  append([]*Course(nil), m.courses...),
		contents: append([]*CourseContent(nil), m.contents...),
	}
	if err := fn(tx); err != nil {
		m.rollbacks++
		return err
	}
	m.courses = tx.courses
	m.contents = tx.contents
	m.commits++
	return nil
}

func (m *memStore) committed() ([]*Course, []*CourseContent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses, m.contents
}

// repo はトランザクション外の読み取り用
func (m *memStore) repo() *memRepo {
	return &memRepo{store: m, courses: m.courses, contents: m.contents}
}

type memRepo struct {
	store    *memStore
	courses  []*Course
	contents []*CourseContent
}

func (r *memRepo) CreateCourse(ctx context.Context, course *Course) (*Course, error) {
	if r.store.failOn == "course:"+course.Code {
		return nil, errInjected
	}
	for _, c := range r.courses {
		if c.Code == course.Code {
			return nil, ErrDuplicateCode
		}
	}
	created := *course
	created.ID = uuid.New()
	r.courses = append(r.courses, &created)
	return &created, nil
}

func (r *memRepo) CreateCourseContent(ctx context.Context, content *CourseContent) (*CourseContent, error) {
	if r.store.failOn == "content:"+content.Topic {
		return nil, errInjected
	}
	created := *content
	created.ID = uuid.New()
	r.contents = append(r.contents, &created)
	return &created, nil
}

func (r *memRepo) GetCourseByCode(ctx context.Context, code string) (mo.Option[*Course], error) {
	for _, c := range r.courses {
		if c.Code == code {
			copied := *c
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*Course](), nil
}

func (r *memRepo) ListCourses(ctx context.Context) ([]*CourseSummary, error) {
	out := make([]*CourseSummary, 0, len(r.courses))
	for _, c := range r.courses {
		count := 0
		for _, content := range r.contents {
			if content.CourseID == c.ID {
				count++
			}
		}
		out = append(out, &CourseSummary{ID: c.ID, Code: c.Code, Name: c.Name, ContentCount: count})
	}
	return out, nil
}

func (r *memRepo) ListCourseContents(ctx context.Context, courseID uuid.UUID) ([]*CourseContent, error) {
	var out []*CourseContent
	for _, content := range r.contents {
		if content.CourseID == courseID {
			out = append(out, content)
		}
	}
	return out, nil
}

func (r *memRepo) SearchCourses(ctx context.Context, queryVector []float32, limit int) ([]*SearchResult, error) {
	out := make([]*SearchResult, 0, len(r.courses))
	for _, c := range r.courses {
		if len(out) == limit {
			break
		}
		out = append(out, &SearchResult{CourseID: c.ID, Code: c.Code, Name: c.Name, Similarity: 1})
	}
	return out, nil
}

// recordingEmbedder は受け取ったテキストを記録する Embedder
type recordingEmbedder struct {
	mu         sync.Mutex
	texts      []string
	batchCalls int
	failOn     string
	dimension  int
}

func (e *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errInjected
	}
	return make([]float32, e.dim()), nil
}

func (e *recordingEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchCalls++
	e.texts = append(e.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim())
	}
	return out, nil
}

func (e *recordingEmbedder) ModelName() string { return "recording" }

func (e *recordingEmbedder) Dimension() int { return e.dim() }

func (e *recordingEmbedder) dim() int {
	if e.dimension == 0 {
		return 384
	}
	return e.dimension
}

// staticProvider は固定の Embedder（またはエラー）を返す
type staticProvider struct {
	embedder *recordingEmbedder
	err      error
}

func (p staticProvider) Get(ctx context.Context) (embedding.Embedder, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.embedder, nil
}
