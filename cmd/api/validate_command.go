package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate <request.json>",
		Short: "Cross-check front, back, QR and portraits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var req models.ValidationRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			c, err := ctx.ensureContainer(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Service().Validate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, resp)
			}
			fmt.Fprintln(out, renderReport(resp.ValidationReport))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON report")
	return cmd
}

func renderReport(report models.ValidationReport) string {
	results := report.Results()
	rows := make([][]string, 0, len(models.Categories)+1)
	for _, category := range models.Categories {
		detail := ""
		switch category {
		case models.CategoryFace:
			if report.FaceError != "" {
				detail = report.FaceError
			} else {
				detail = strconv.FormatFloat(report.FaceDistance, 'f', 3, 64)
			}
		case models.CategoryQR:
			detail = report.QRReason
		}
		rows = append(rows, []string{category, passFail(results[category]), detail})
	}
	rows = append(rows, []string{"overall", passFail(report.Success()), report.ID})
	return renderTable([]string{"Check", "Result", "Detail"}, rows, nil)
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}
