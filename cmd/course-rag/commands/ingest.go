package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/jinford/course-rag/internal/core/catalog"
	"github.com/jinford/course-rag/internal/core/embedding"
	"github.com/jinford/course-rag/internal/platform/container"
)

// DefaultIngestPath は引数省略時に読み込むファイル
const DefaultIngestPath = "example_courses.json"

// IngestAction はコース JSON を取り込むコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	path := ingestPath(cmd.Args().First())
	w := stdout(cmd)

	opts := []container.Option{
		container.WithIngestProgress(func(course *catalog.Course) {
			printAdded(w, course)
		}),
	}
	if cmd.IsSet("batch") {
		opts = append(opts, container.WithIngestOptions(catalog.WithBatchEmbedding(cmd.Bool("batch"))))
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile, opts...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 埋め込みサービスへの接続を先に確認する
	fmt.Fprintln(w, "Initializing embedding service...")
	embedder, err := appCtx.Container.Embedders.Get(ctx)
	if err != nil {
		printConnectionHint(stderr(cmd), appCtx.Config.Embedding.URL, err)
		return err
	}
	fmt.Fprintf(w, "✓ Embedding service ready! Dimension: %d\n", embedder.Dimension())

	result, err := appCtx.Container.IngestService.IngestFile(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n✓ Successfully imported %d courses with embeddings!\n", result.Committed)
	return nil
}

func ingestPath(arg string) string {
	if arg == "" {
		return DefaultIngestPath
	}
	return arg
}

func printAdded(w io.Writer, course *catalog.Course) {
	fmt.Fprintf(w, "✓ Added: %s - %s\n", course.Code, course.Name)
}

func printConnectionHint(w io.Writer, url string, err error) {
	if !errors.Is(err, embedding.ErrConnectionFailed) {
		return
	}
	fmt.Fprintf(w, "❌ Failed to initialize embedding service: %v\n", err)
	fmt.Fprintf(w, "Make sure the embedding service is running at %s (docker compose up -d embeddings)\n", url)
}
