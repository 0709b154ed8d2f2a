// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

type sheetSection struct {
	DateColumn string `koanf:"date_column" validate:"required,excelcol"`
	HeaderRows int    `koanf:"header_rows" validate:"gte=0,lte=100"`
}

type testConfig struct {
	Sheet sheetSection `koanf:"sheet"`
	Kind  string       `koanf:"kind" validate:"oneof=rest postgres memory"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		cfg       testConfig
		wantErr   bool
		wantField string
		wantMsg   string
	}{
		{
			name: "valid",
			cfg:  testConfig{Sheet: sheetSection{DateColumn: "A", HeaderRows: 1}, Kind: "rest"},
		},
		{
			name:      "bad column",
			cfg:       testConfig{Sheet: sheetSection{DateColumn: "A1"}, Kind: "rest"},
			wantErr:   true,
			wantField: "sheet.date_column",
			wantMsg:   "sheet.date_column must be a spreadsheet column",
		},
		{
			name:      "missing column",
			cfg:       testConfig{Kind: "memory"},
			wantErr:   true,
			wantField: "sheet.date_column",
			wantMsg:   "sheet.date_column is required",
		},
		{
			name:      "oneof",
			cfg:       testConfig{Sheet: sheetSection{DateColumn: "B"}, Kind: "sqlite"},
			wantErr:   true,
			wantField: "kind",
			wantMsg:   "kind must be one of: rest postgres memory",
		},
		{
			name:      "range",
			cfg:       testConfig{Sheet: sheetSection{DateColumn: "AB", HeaderRows: 500}, Kind: "rest"},
			wantErr:   true,
			wantField: "sheet.header_rows",
			wantMsg:   "sheet.header_rows must be less than or equal to 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.cfg)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var sve *StructValidationError
			if !errors.As(err, &sve) {
				t.Fatalf("expected StructValidationError, got %v", err)
			}
			if got := sve.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("Field() = %q, want %q", got, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
