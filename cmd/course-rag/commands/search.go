package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/course-rag/internal/core/catalog"
)

// SearchAction はクエリに近いコースを検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	limit := cmd.Int("limit")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	appCtx.Logger().Debug("コース検索を開始", "query", query, "limit", limit)

	results, err := appCtx.Container.QueryService.Search(ctx, catalog.SearchParams{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return err
	}

	renderSearchResults(stdout(cmd), results)
	return nil
}

func renderSearchResults(w io.Writer, results []*catalog.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching courses.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Code", "Name", "Similarity")

	for i, r := range results {
		table.Append(
			strconv.Itoa(i+1),
			r.Code,
			truncateString(r.Name, 50),
			fmt.Sprintf("%.4f", r.Similarity),
		)
	}

	table.Render()
}
