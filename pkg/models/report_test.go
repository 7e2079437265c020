package models

import (
	"reflect"
	"testing"
)

func TestValidationReport_FailedChecks(t *testing.T) {
	tests := []struct {
		name    string
		report  ValidationReport
		failed  []string
		success bool
	}{
		{
			name:    "all pass",
			report:  ValidationReport{Face: true, RUT: true, DocID: true, Dates: true, Names: true, QR: true},
			success: true,
		},
		{
			name:    "face and qr fail",
			report:  ValidationReport{RUT: true, DocID: true, Dates: true, Names: true},
			failed:  []string{CategoryFace, CategoryQR},
			success: false,
		},
		{
			name:    "zero value fails everything",
			report:  ValidationReport{},
			failed:  Categories,
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.report.FailedChecks()
			if !reflect.DeepEqual(got, tt.failed) {
				t.Errorf("Expected failed %v, got %v", tt.failed, got)
			}
			if tt.report.Success() != tt.success {
				t.Errorf("Expected success %v, got %v", tt.success, tt.report.Success())
			}
		})
	}
}

func TestFailureMarker(t *testing.T) {
	if got := FailureMarker(FieldSex); got != "Error en sex" {
		t.Errorf("Expected 'Error en sex', got %q", got)
	}
}

func TestFrontResult_Flashed(t *testing.T) {
	if (FrontResult{Fields: FieldSet{FieldSex: "M"}}).Flashed() {
		t.Error("Expected no flash warning")
	}
	if !(FrontResult{FlashWarning: "glare"}).Flashed() {
		t.Error("Expected flash warning")
	}
}
