package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored validation reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.ensureContainer(cmd)
			if err != nil {
				return err
			}
			reports, err := c.Service().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			cmd.Println(renderHistory(reports))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of reports to show")
	return cmd
}

func renderHistory(reports []models.ValidationReport) string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		failed := strings.Join(r.FailedChecks(), ",")
		if failed == "" {
			failed = "-"
		}
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			passFail(r.Success()),
			failed,
			strconv.Itoa(len(r.Comparisons)),
		})
	}
	return renderTable(
		[]string{"ID", "Created", "Result", "Failed", "Comparisons"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
