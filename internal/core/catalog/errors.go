package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput は入力 JSON の形式が不正な場合のエラー
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingField は必須フィールドが欠落している場合のエラー
	ErrMissingField = errors.New("missing required field")
	// ErrFieldTooLong はフィールド長が列の上限を超える場合のエラー
	ErrFieldTooLong = errors.New("field too long")
	// ErrDuplicateCode はコースコードが既に存在する場合のエラー
	ErrDuplicateCode = errors.New("course code already exists")
	// ErrCourseNotFound はコースが存在しない場合のエラー
	ErrCourseNotFound = errors.New("course not found")
)

// DescriptorError は特定のディスクリプタに起因するエラー
type DescriptorError struct {
	Index int
	Code  string
	Field string
	Err   error
}

func (e *DescriptorError) Error() string {
	target := fmt.Sprintf("course #%d", e.Index+1)
	if e.Code != "" {
		target = fmt.Sprintf("%s (%s)", target, e.Code)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", target, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", target, e.Err)
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// PersistenceError は保存・コミット時のエラー
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
