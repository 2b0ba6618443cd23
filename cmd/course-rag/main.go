package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/course-rag/cmd/course-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		os.Exit(1)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "course-rag",
		Usage: "コース情報を埋め込みベクトル付きで PostgreSQL (pgvector) に取り込むツール",
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "コース JSON を1トランザクションで取り込む",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "batch",
						Usage: "全コースの Embedding を1リクエストで生成する（INGEST_BATCH_EMBEDDING を上書き）",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "course",
				Usage: "取り込み済みコースの参照コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "コース一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.CourseListAction,
					},
					{
						Name:  "show",
						Usage: "コース詳細と週ごとのトピックを表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "code",
								Usage:    "コースコード",
								Required: true,
							},
						},
						Action: commands.CourseShowAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "クエリに意味的に近いコースを検索",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "最大件数",
						Value: 10,
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "embed",
				Usage: "埋め込みサービスへの接続を確認し、テキストのベクトルを表示",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "text",
						Usage: "埋め込むテキスト",
						Value: "connection test",
					},
				},
				Action: commands.EmbedAction,
			},
			{
				Name:  "db",
				Usage: "データベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "vector 拡張・テーブル・インデックスを作成",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.DBInitAction,
					},
				},
			},
		},
	}
}
