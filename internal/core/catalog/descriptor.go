package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// 列の上限（schema.sql と一致させる）
const (
	MaxCodeLength        = 20
	MaxNameLength        = 200
	MaxDescriptionLength = 500
)

// CourseDescriptor は入力 JSON の1コース分
type CourseDescriptor struct {
	Code        *string        `json:"code"`
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Keywords    *string        `json:"keywords"`
	Content     []ContentEntry `json:"content"`

	// specified は入力 JSON に存在したキー（値が null でも記録する）
	specified map[string]bool
}

// UnmarshalJSON はフィールドの値に加えて、どのキーが指定されたかを記録する
func (d *CourseDescriptor) UnmarshalJSON(data []byte) error {
	type plain CourseDescriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = CourseDescriptor(p)
	d.specified = make(map[string]bool, len(raw))
	for key := range raw {
		d.specified[strings.ToLower(key)] = true
	}
	return nil
}

// isSpecified はフィールドが指定されているかを返す。
// JSON から読み込んだ場合はキーの有無、それ以外は値が nil でないかで判定する。
func (d CourseDescriptor) isSpecified(field string, value *string) bool {
	return value != nil || d.specified[field]
}

// ContentEntry は入力 JSON の1週分。週番号は week_number または week で指定する。
type ContentEntry struct {
	WeekNumber *int    `json:"week_number"`
	Week       *int    `json:"week"`
	Topic      *string `json:"topic"`
}

type courseFile struct {
	Courses *[]CourseDescriptor `json:"courses"`
}

// ParseDescriptors は入力 JSON を解析する。
// ディスクリプタの配列、または courses フィールドを持つオブジェクトを受け付ける。
func ParseDescriptors(data []byte) ([]CourseDescriptor, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	switch trimmed[0] {
	case '[':
		var descriptors []CourseDescriptor
		if err := json.Unmarshal(trimmed, &descriptors); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return descriptors, nil
	case '{':
		var file courseFile
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if file.Courses == nil {
			return nil, fmt.Errorf("%w: object has no \"courses\" array", ErrInvalidInput)
		}
		return *file.Courses, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrInvalidInput)
	}
}

// Validate は必須フィールドと長さを検証する。エラーは *DescriptorError。
func (d CourseDescriptor) Validate(index int) error {
	code := d.CodeValue()

	if !present(d.Code) {
		return &DescriptorError{Index: index, Field: "code", Err: ErrMissingField}
	}
	if !present(d.Name) {
		return &DescriptorError{Index: index, Code: code, Field: "name", Err: ErrMissingField}
	}

	limits := []struct {
		field string
		value *string
		max   int
	}{
		{"code", d.Code, MaxCodeLength},
		{"name", d.Name, MaxNameLength},
		{"description", d.Description, MaxDescriptionLength},
	}
	for _, l := range limits {
		if l.value != nil && utf8.RuneCountInString(*l.value) > l.max {
			return &DescriptorError{
				Index: index,
				Code:  code,
				Field: l.field,
				Err:   fmt.Errorf("%w: max %d characters", ErrFieldTooLong, l.max),
			}
		}
	}

	for i, entry := range d.Content {
		ordinal, ok := entry.Ordinal()
		if !ok {
			return &DescriptorError{
				Index: index,
				Code:  code,
				Field: fmt.Sprintf("content[%d].week_number", i),
				Err:   ErrMissingField,
			}
		}
		// week_number 列は INTEGER
		if ordinal < math.MinInt32 || ordinal > math.MaxInt32 {
			return &DescriptorError{
				Index: index,
				Code:  code,
				Field: fmt.Sprintf("content[%d].week_number", i),
				Err:   fmt.Errorf("%w: %d is out of range", ErrInvalidInput, ordinal),
			}
		}
		if !present(entry.Topic) {
			return &DescriptorError{
				Index: index,
				Code:  code,
				Field: fmt.Sprintf("content[%d].topic", i),
				Err:   ErrMissingField,
			}
		}
	}

	return nil
}

// CodeValue はコースコードを返す（未指定時は空文字）
func (d CourseDescriptor) CodeValue() string {
	if d.Code == nil {
		return ""
	}
	return *d.Code
}

// NameValue はコース名を返す（未指定時は空文字）
func (d CourseDescriptor) NameValue() string {
	if d.Name == nil {
		return ""
	}
	return *d.Name
}

type embeddingSource struct {
	field string
	value func(CourseDescriptor) *string
}

// embeddingSources は Embedding の元テキストとして参照するフィールドの優先順
var embeddingSources = []embeddingSource{
	{"keywords", func(d CourseDescriptor) *string { return d.Keywords }},
	{"description", func(d CourseDescriptor) *string { return d.Description }},
	{"name", func(d CourseDescriptor) *string { return d.Name }},
}

// EmbeddingText は keywords, description, name の順で最初に指定されたフィールドの値と名前を返す。
// 指定されたフィールドは空文字や null でもそのまま採用する。
func (d CourseDescriptor) EmbeddingText() (text string, field string, ok bool) {
	for _, source := range embeddingSources {
		v := source.value(d)
		if !d.isSpecified(source.field, v) {
			continue
		}
		if v == nil {
			return "", source.field, true
		}
		return *v, source.field, true
	}
	return "", "", false
}

// Ordinal は week_number, week の順で最初に値のあるものを返す
func (e ContentEntry) Ordinal() (int, bool) {
	for _, v := range []*int{e.WeekNumber, e.Week} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// present は nil でも空白のみでもない場合に true を返す
func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
