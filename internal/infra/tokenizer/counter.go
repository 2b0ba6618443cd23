// Package tokenizer は埋め込み入力のトークン数を扱う
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は使用するエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter はトークン数のカウントと切り詰めを提供する
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は cl100k_base を使う Counter を作成する
func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &Counter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// TrimToTokenLimit は maxTokens を超える部分を切り捨てる。
// 2番目の戻り値は切り詰めが発生したかどうか。
func (c *Counter) TrimToTokenLimit(text string, maxTokens int) (string, bool) {
	if c == nil || c.encoding == nil || maxTokens <= 0 {
		return text, false
	}

	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false
	}

	return c.encoding.Decode(tokens[:maxTokens]), true
}
