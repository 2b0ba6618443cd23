package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/course-rag/internal/platform/container"
)

// DBInitAction は vector 拡張とテーブルを作成するコマンドのアクション
func DBInitAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	cfg, appLogger, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := container.InitSchema(ctx, appLogger, cfg); err != nil {
		return err
	}

	fmt.Fprintln(stdout(cmd), "✓ Database schema is ready")
	return nil
}
