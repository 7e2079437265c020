package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"serve": false, "inspect": false, "validate": false, "history": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %s", name)
		}
	}
}

func TestInspectCommand_RejectsUnknownSide(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"inspect", "edge", "card.jpg"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown side") {
		t.Errorf("Expected unknown side error, got %v", err)
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"validate", t.TempDir() + "/missing.json"})

	if err := root.Execute(); err == nil {
		t.Error("Expected error for missing request file")
	}
}

func TestRenderReport(t *testing.T) {
	out := renderReport(models.ValidationReport{
		ID:           "r1",
		Face:         true,
		RUT:          true,
		DocID:        true,
		Dates:        true,
		Names:        false,
		QR:           true,
		FaceDistance: 0.42,
		QRReason:     models.QRReasonMatch,
	})

	for _, want := range []string{"names", "FAIL", "0.420", models.QRReasonMatch, "overall"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	reports := []models.ValidationReport{
		{ID: "a", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Face: true, RUT: true, DocID: true, Dates: true, Names: true, QR: true},
		{ID: "b", CreatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), RUT: true},
	}
	out := renderHistory(reports)

	if !strings.Contains(out, "face,doc_id,dates,names,qr") {
		t.Errorf("Expected failed checks of b in output:\n%s", out)
	}
	if strings.Count(out, "pass") != 1 {
		t.Errorf("Expected one passing report:\n%s", out)
	}
}

func TestRenderTable_PadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}}, nil)
	if !strings.Contains(out, "x") || !strings.Contains(out, "A") {
		t.Errorf("Unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("Expected empty output without headers")
	}
}
