package catalog

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestParseDescriptors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCodes []string
		wantErr   error
	}{
		{
			name:      "配列形式",
			input:     `[{"code":"CS101","name":"Intro"},{"code":"CS102","name":"Data"}]`,
			wantCodes: []string{"CS101", "CS102"},
		},
		{
			name:      "coursesオブジェクト形式",
			input:     `{"courses":[{"code":"CS101","name":"Intro"}]}`,
			wantCodes: []string{"CS101"},
		},
		{
			name:      "空のcourses",
			input:     `{"courses":[]}`,
			wantCodes: []string{},
		},
		{
			name:    "coursesを持たないオブジェクト",
			input:   `{"items":[]}`,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "不正なJSON",
			input:   `[{"code":`,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "空文書",
			input:   "  \n",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "スカラー",
			input:   `"CS101"`,
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptors, err := ParseDescriptors([]byte(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			codes := make([]string, 0, len(descriptors))
			for _, d := range descriptors {
				codes = append(codes, d.CodeValue())
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestCourseDescriptor_EmbeddingText(t *testing.T) {
	tests := []struct {
		name      string
		d         CourseDescriptor
		want      string
		wantField string
	}{
		{
			name:      "keywordsを最優先",
			d:         CourseDescriptor{Name: strPtr("Intro"), Description: strPtr("desc"), Keywords: strPtr("intro programming")},
			want:      "intro programming",
			wantField: "keywords",
		},
		{
			name:      "keywordsが空白でもkeywordsを採用",
			d:         CourseDescriptor{Name: strPtr("Intro"), Description: strPtr("desc"), Keywords: strPtr("  ")},
			want:      "  ",
			wantField: "keywords",
		},
		{
			name:      "descriptionにフォールバック",
			d:         CourseDescriptor{Name: strPtr("Intro"), Description: strPtr("desc")},
			want:      "desc",
			wantField: "description",
		},
		{
			name:      "nameにフォールバック",
			d:         CourseDescriptor{Name: strPtr("Intro")},
			want:      "Intro",
			wantField: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, field, ok := tt.d.EmbeddingText()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantField, field)
		})
	}

	_, _, ok := CourseDescriptor{}.EmbeddingText()
	assert.False(t, ok)
}

func TestCourseDescriptor_EmbeddingTextFromJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantField string
	}{
		{
			name:      "keywordsが空文字",
			input:     `[{"code":"A1","name":"One","keywords":"","description":"desc text"}]`,
			want:      "",
			wantField: "keywords",
		},
		{
			name:      "keywordsがnull",
			input:     `[{"code":"A1","name":"One","keywords":null,"description":"desc text"}]`,
			want:      "",
			wantField: "keywords",
		},
		{
			name:      "keywordsなし",
			input:     `[{"code":"A1","name":"One","description":"desc text"}]`,
			want:      "desc text",
			wantField: "description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptors, err := ParseDescriptors([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, descriptors, 1)

			got, field, ok := descriptors[0].EmbeddingText()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantField, field)
		})
	}
}

func TestContentEntry_Ordinal(t *testing.T) {
	tests := []struct {
		name   string
		entry  ContentEntry
		want   int
		wantOK bool
	}{
		{name: "weekのみ", entry: ContentEntry{Week: intPtr(1)}, want: 1, wantOK: true},
		{name: "week_numberのみ", entry: ContentEntry{WeekNumber: intPtr(2)}, want: 2, wantOK: true},
		{name: "両方指定時はweek_numberを優先", entry: ContentEntry{WeekNumber: intPtr(3), Week: intPtr(9)}, want: 3, wantOK: true},
		{name: "0も有効な値", entry: ContentEntry{Week: intPtr(0)}, want: 0, wantOK: true},
		{name: "どちらもない", entry: ContentEntry{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.entry.Ordinal()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCourseDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name      string
		d         CourseDescriptor
		wantField string
		wantErr   error
	}{
		{
			name: "正常",
			d: CourseDescriptor{
				Code:    strPtr("CS101"),
				Name:    strPtr("Intro"),
				Content: []ContentEntry{{Week: intPtr(1), Topic: strPtr("Basics")}},
			},
		},
		{
			name:      "codeなし",
			d:         CourseDescriptor{Name: strPtr("Intro")},
			wantField: "code",
			wantErr:   ErrMissingField,
		},
		{
			name:      "nameが空白",
			d:         CourseDescriptor{Code: strPtr("CS101"), Name: strPtr(" ")},
			wantField: "name",
			wantErr:   ErrMissingField,
		},
		{
			name:      "codeが長すぎる",
			d:         CourseDescriptor{Code: strPtr(strings.Repeat("C", MaxCodeLength+1)), Name: strPtr("Intro")},
			wantField: "code",
			wantErr:   ErrFieldTooLong,
		},
		{
			name:      "descriptionが長すぎる",
			d:         CourseDescriptor{Code: strPtr("CS101"), Name: strPtr("Intro"), Description: strPtr(strings.Repeat("d", MaxDescriptionLength+1))},
			wantField: "description",
			wantErr:   ErrFieldTooLong,
		},
		{
			name: "週番号なし",
			d: CourseDescriptor{
				Code:    strPtr("CS101"),
				Name:    strPtr("Intro"),
				Content: []ContentEntry{{Topic: strPtr("Basics")}},
			},
			wantField: "content[0].week_number",
			wantErr:   ErrMissingField,
		},
		{
			name: "週番号がINTEGERの範囲外",
			d: CourseDescriptor{
				Code:    strPtr("CS101"),
				Name:    strPtr("Intro"),
				Content: []ContentEntry{{WeekNumber: intPtr(1), Topic: strPtr("Basics")}, {WeekNumber: intPtr(math.MaxInt32 + 2), Topic: strPtr("Overflow")}},
			},
			wantField: "content[1].week_number",
			wantErr:   ErrInvalidInput,
		},
		{
			name: "topicなし",
			d: CourseDescriptor{
				Code:    strPtr("CS101"),
				Name:    strPtr("Intro"),
				Content: []ContentEntry{{Week: intPtr(1)}, {Week: intPtr(2)}},
			},
			wantField: "content[0].topic",
			wantErr:   ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate(3)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			var descErr *DescriptorError
			require.ErrorAs(t, err, &descErr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 3, descErr.Index)
			assert.Equal(t, tt.wantField, descErr.Field)
			assert.Contains(t, err.Error(), "course #4")
		})
	}
}
