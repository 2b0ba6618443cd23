// Package catalog はコース情報の取り込みと検索のユースケースを提供する
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Course は Embedding を持つコース（親レコード）
type Course struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Description *string
	Keywords    *string
	Embedding   []float32
	CreatedAt   time.Time
	Contents    []*CourseContent
}

// CourseContent はコースに属する週ごとのトピック（子レコード）
type CourseContent struct {
	ID         uuid.UUID
	CourseID   uuid.UUID
	WeekNumber int
	Topic      string
}

// NewCourse は ID 未割り当ての Course を作成する。ID はストアが採番する。
func NewCourse(code, name string, description, keywords *string, vector []float32) *Course {
	return &Course{
		Code:        code,
		Name:        name,
		Description: description,
		Keywords:    keywords,
		Embedding:   vector,
	}
}

// NewCourseContent は親コースを参照する CourseContent を作成する
func NewCourseContent(courseID uuid.UUID, weekNumber int, topic string) *CourseContent {
	return &CourseContent{
		CourseID:   courseID,
		WeekNumber: weekNumber,
		Topic:      topic,
	}
}

// CourseSummary は一覧表示用のコース情報
type CourseSummary struct {
	ID           uuid.UUID
	Code         string
	Name         string
	ContentCount int
	CreatedAt    time.Time
}

// SearchResult は類似度検索の結果
type SearchResult struct {
	CourseID    uuid.UUID
	Code        string
	Name        string
	Description *string
	// Similarity はコサイン類似度（1 - コサイン距離）
	Similarity float64
}

// IngestResult は取り込み処理の結果
type IngestResult struct {
	Committed int
	Courses   []*Course
	Duration  time.Duration
}
