package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/anime-shed/idcard-inspector-go/internal/service"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:       "inspect front|back <image>",
		Short:     "Align a card photograph and read it",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"front", "back"},
		RunE: func(cmd *cobra.Command, args []string) error {
			side := models.DocumentSide(args[0])
			if side != models.SideFront && side != models.SideBack {
				return fmt.Errorf("unknown side %q (want front or back)", args[0])
			}

			c, err := ctx.ensureContainer(cmd)
			if err != nil {
				return err
			}

			file, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer file.Close()

			in := service.Input{Upload: file}
			out := cmd.OutOrStdout()
			if side == models.SideFront {
				resp, err := c.Service().ProcessFront(cmd.Context(), in)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, resp)
				}
				fmt.Fprintln(out, renderFront(resp))
				return nil
			}

			resp, err := c.Service().ProcessBack(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, resp)
			}
			fmt.Fprintln(out, renderBack(resp))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON response")
	return cmd
}

func renderFront(resp *models.FrontResponse) string {
	if resp.FlashWarning != "" {
		return renderTable([]string{"Warning", "Image"}, [][]string{{resp.FlashWarning, resp.ImagePath}}, nil)
	}
	keys := make([]string, 0, len(resp.Text))
	for k := range resp.Text {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys)+3)
	for _, k := range keys {
		rows = append(rows, []string{k, resp.Text[k]})
	}
	rows = append(rows,
		[]string{"image", resp.ImagePath},
		[]string{"face", resp.FaceImagePath},
		[]string{"ghost_face", resp.GhostFacePath},
	)
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func renderBack(resp *models.BackResponse) string {
	mrz := resp.Text
	rows := [][]string{
		{"document_number", mrz.DocumentNumber},
		{"run", mrz.RUN},
		{"check_digit", mrz.CheckDigit},
		{"birth_date", mrz.BirthDate},
		{"expiry_date", mrz.ExpiryDate},
		{"paternal_surname", mrz.PaternalSurname},
		{"maternal_surname", mrz.MaternalSurname},
		{"given_names", mrz.GivenNames},
		{"qr", resp.QR},
		{"image", resp.ImagePath},
	}
	if mrz.Warning != "" {
		rows = append(rows, []string{"warning", mrz.Warning})
	}
	if mrz.FlashWarning != "" {
		rows = append(rows, []string{"flash_warning", mrz.FlashWarning})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
