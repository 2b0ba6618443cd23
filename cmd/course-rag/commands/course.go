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

// CourseListAction はコース一覧を表示するコマンドのアクション
func CourseListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	courses, err := appCtx.Container.QueryService.List(ctx)
	if err != nil {
		return err
	}

	renderCourseTable(stdout(cmd), courses)
	return nil
}

// CourseShowAction はコース詳細を表示するコマンドのアクション
func CourseShowAction(ctx context.Context, cmd *cli.Command) error {
	code := cmd.String("code")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	course, err := appCtx.Container.QueryService.Show(ctx, code)
	if err != nil {
		return err
	}

	renderCourseDetail(stdout(cmd), course)
	return nil
}

func renderCourseTable(w io.Writer, courses []*catalog.CourseSummary) {
	if len(courses) == 0 {
		fmt.Fprintln(w, "No courses found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Code", "Name", "Weeks", "Created At")

	for _, c := range courses {
		table.Append(
			c.Code,
			truncateString(c.Name, 50),
			strconv.Itoa(c.ContentCount),
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

func renderCourseDetail(w io.Writer, course *catalog.Course) {
	fmt.Fprintf(w, "Code:        %s\n", course.Code)
	fmt.Fprintf(w, "Name:        %s\n", course.Name)
	fmt.Fprintf(w, "Description: %s\n", valueOr(course.Description, "-"))
	fmt.Fprintf(w, "Keywords:    %s\n", valueOr(course.Keywords, "-"))
	fmt.Fprintf(w, "Embedding:   %d dimensions\n", len(course.Embedding))

	if len(course.Contents) == 0 {
		return
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Week", "Topic")
	for _, content := range course.Contents {
		table.Append(strconv.Itoa(content.WeekNumber), content.Topic)
	}
	table.Render()
}

// truncateString は文字列を指定文字数で切り詰める
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
