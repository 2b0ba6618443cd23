package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Embedder はテキストをベクトル表現に変換するインターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストを1リクエストでEmbeddingし、入力順に返す
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName はモデル名を返す
	ModelName() string

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int
}

// Metadata は Embedder のメタデータを表す
type Metadata struct {
	ModelName string
	Dimension int
}

// ValidateText は空文字・空白のみのテキストを拒否する
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateTexts はバッチ入力を検証する
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: texts list cannot be empty", ErrInvalidInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d cannot be empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// CheckDimension はベクトル長が宣言された次元数と一致するか確認する
func CheckDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}
