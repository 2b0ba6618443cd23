package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/course-rag/internal/core/embedding"
)

const previewValues = 5

// EmbedAction は埋め込みサービスへの接続を確認し、ベクトルの先頭を表示するコマンドのアクション
func EmbedAction(ctx context.Context, cmd *cli.Command) error {
	text := cmd.String("text")
	envFile := cmd.String("env")
	w := stdout(cmd)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	embedder, err := appCtx.Container.Embedders.Get(ctx)
	if err != nil {
		printConnectionHint(stderr(cmd), appCtx.Config.Embedding.URL, err)
		return err
	}

	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	renderEmbedding(w, embedder, vector)
	return nil
}

func renderEmbedding(w io.Writer, embedder embedding.Embedder, vector []float32) {
	fmt.Fprintf(w, "✓ Embedding service ready! Dimension: %d\n", embedder.Dimension())
	fmt.Fprintf(w, "Model:  %s\n", embedder.ModelName())

	n := min(previewValues, len(vector))
	values := make([]string, n)
	for i := range n {
		values[i] = fmt.Sprintf("%.6f", vector[i])
	}

	suffix := ""
	if len(vector) > n {
		suffix = ", ..."
	}
	fmt.Fprintf(w, "Vector: [%s%s] (%d values)\n", strings.Join(values, ", "), suffix, len(vector))
}
