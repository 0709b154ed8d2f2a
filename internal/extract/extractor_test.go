// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package extract

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type row struct {
	date  interface{}
	count interface{}
}

// writeWorkbook creates an xlsx at path with rows under a header on sheet.
func writeWorkbook(t *testing.T, path, sheet string, rows []row) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("DeleteSheet: %v", err)
		}
	}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(f.SetCellValue(sheet, "A1", "Date"))
	must(f.SetCellValue(sheet, "B1", "Reservations"))
	for i, r := range rows {
		n := i + 2
		if r.date != nil {
			must(f.SetCellValue(sheet, "A"+strconv.Itoa(n), r.date))
		}
		if r.count != nil {
			must(f.SetCellValue(sheet, "B"+strconv.Itoa(n), r.count))
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

// fakeProbe locks the listed paths.
type fakeProbe map[string]bool

func (p fakeProbe) IsUnlocked(_ context.Context, path string, _ time.Duration) bool {
	return !p[path]
}

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	cfg := Config{
		TenantID:   1,
		SheetName:  "Reservations",
		DateColumn: "A",
		HeaderRows: 1,
		Retry:      retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	facilities := FacilityMap{{Match: "Aoba", ID: 7}, {Match: "Midori", ID: 8}}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithProbe(fakeProbe{})}, opts...)
	e, err := New(cfg, facilities, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func recordFor(t *testing.T, records []models.MonthlyReservationRecord, facility int, month time.Month) models.MonthlyReservationRecord {
	t.Helper()
	for _, r := range records {
		if r.Key.FacilityID == facility && r.Key.Month == month {
			return r
		}
	}
	t.Fatalf("no record for facility %d month %v in %d records", facility, month, len(records))
	return models.MonthlyReservationRecord{}
}

func TestExtract_AggregatesDailyCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Aoba_2024.xlsx")
	writeWorkbook(t, path, "Reservations", []row{
		{time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 5},
		{"2024/01/06", 3},
		{time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 9}, // previous year
		{time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 1},
		{"2024-01-05", 7}, // duplicate day, last wins
		{"2024-01-10", nil},
		{"not a date", 4},
	})

	e := newTestExtractor(t)
	res, err := e.Extract(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("Succeeded/Failed/Skipped = %d/%d/%d, want 1/0/0", res.Succeeded, res.Failed, res.Skipped)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Records = %d, want 2 (Jan, Feb)", len(res.Records))
	}
	for _, rec := range res.Records {
		if !rec.Valid() {
			t.Errorf("%v has %d counts, want one per day of the month", rec.Key, len(rec.ReservationCounts))
		}
	}

	jan := recordFor(t, res.Records, 7, time.January)
	if len(jan.ReservationCounts) != 31 {
		t.Errorf("January length = %d, want 31", len(jan.ReservationCounts))
	}
	if jan.ReservationCounts[4] != "7" {
		t.Errorf("Jan 5 = %q, want 7 (last value wins)", jan.ReservationCounts[4])
	}
	if jan.ReservationCounts[5] != "3" {
		t.Errorf("Jan 6 = %q, want 3", jan.ReservationCounts[5])
	}
	if jan.ReservationCounts[0] != models.DefaultDailyCount {
		t.Errorf("Jan 1 = %q, want default %q", jan.ReservationCounts[0], models.DefaultDailyCount)
	}
	if jan.Key.TenantID != 1 || jan.SourceFile != path {
		t.Errorf("unexpected key/source: %+v %q", jan.Key, jan.SourceFile)
	}

	feb := recordFor(t, res.Records, 7, time.February)
	if len(feb.ReservationCounts) != 29 {
		t.Errorf("February 2024 length = %d, want 29", len(feb.ReservationCounts))
	}
	if feb.ReservationCounts[28] != "1" {
		t.Errorf("Feb 29 = %q, want 1", feb.ReservationCounts[28])
	}

	if res.Files[0].InvalidRows != 1 {
		t.Errorf("InvalidRows = %d, want 1", res.Files[0].InvalidRows)
	}
}

func TestExtract_FileOutcomes(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Midori.xlsx")
	unmapped := filepath.Join(dir, "Sakura.xlsx")
	locked := filepath.Join(dir, "Aoba_locked.xlsx")
	corrupt := filepath.Join(dir, "Aoba_corrupt.xlsx")

	writeWorkbook(t, good, "Reservations", []row{{"2024-03-01", 2}})
	writeWorkbook(t, unmapped, "Reservations", []row{{"2024-03-01", 2}})
	writeWorkbook(t, locked, "Reservations", []row{{"2024-03-01", 2}})
	if err := os.WriteFile(corrupt, []byte("definitely not a zip archive"), 0o600); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(t, WithProbe(fakeProbe{locked: true}))
	res, err := e.Extract(context.Background(), []string{unmapped, locked, corrupt, good})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := map[string]Status{
		unmapped: StatusSkippedUnmapped,
		locked:   StatusSkippedLocked,
		corrupt:  StatusFailed,
		good:     StatusOK,
	}
	for _, f := range res.Files {
		if f.Status != want[f.Path] {
			t.Errorf("%s status = %s, want %s", filepath.Base(f.Path), f.Status, want[f.Path])
		}
	}
	if res.Succeeded != 1 || res.Skipped != 2 || res.Failed != 1 {
		t.Errorf("Succeeded/Skipped/Failed = %d/%d/%d, want 1/2/1", res.Succeeded, res.Skipped, res.Failed)
	}
	if len(res.Records) != 1 || res.Records[0].Key.FacilityID != 8 {
		t.Errorf("Records = %+v, want one Midori record", res.Records)
	}
	if ids := res.FacilityIDs(); len(ids) != 1 || ids[0] != 8 {
		t.Errorf("FacilityIDs() = %v, want [8]", ids)
	}
}

func TestExtract_DegradedSheetMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Aoba.xlsx")
	writeWorkbook(t, path, "Sheet1", []row{{"2024-04-02", 6}})

	e := newTestExtractor(t)
	res, err := e.Extract(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Files[0].Status != StatusOK || !res.Files[0].DegradedSheet {
		t.Errorf("outcome = %+v, want ok with degraded sheet", res.Files[0])
	}
	apr := recordFor(t, res.Records, 7, time.April)
	if apr.ReservationCounts[1] != "6" {
		t.Errorf("Apr 2 = %q, want 6", apr.ReservationCounts[1])
	}
}

func TestExtract_CountColumnOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Aoba.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A2", "ignored")
	_ = f.SetCellValue("Sheet1", "B2", "2024-05-03")
	_ = f.SetCellValue("Sheet1", "D2", 11)
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	e, err := New(Config{TenantID: 1, SheetName: "Sheet1", DateColumn: "B", CountColumn: "D", HeaderRows: 1}, FacilityMap{{Match: "Aoba", ID: 7}},
		WithClock(func() time.Time { return testNow }), WithProbe(fakeProbe{}))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Extract(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	may := recordFor(t, res.Records, 7, time.May)
	if may.ReservationCounts[2] != "11" {
		t.Errorf("May 3 = %q, want 11", may.ReservationCounts[2])
	}
}

func TestExtractAll_EnumeratesAndSkipsMarkers(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "2024"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeWorkbook(t, filepath.Join(dir, "2024", "Aoba.xlsx"), "Reservations", []row{{"2024-01-01", 1}})
	writeWorkbook(t, filepath.Join(dir, "Midori.xlsx"), "Reservations", []row{{"2024-01-01", 2}})
	if err := os.WriteFile(filepath.Join(dir, "~$Midori.xlsx"), []byte("owner"), 0o600); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(t)
	res, err := e.ExtractAll(context.Background(), dir)
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	if len(res.Files) != 2 || res.Succeeded != 2 {
		t.Errorf("Files = %d, Succeeded = %d; want 2, 2", len(res.Files), res.Succeeded)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(res.Records))
	}
	// Records are ordered by facility.
	if res.Records[0].Key.FacilityID != 7 || res.Records[1].Key.FacilityID != 8 {
		t.Errorf("record order = %d, %d; want 7, 8", res.Records[0].Key.FacilityID, res.Records[1].Key.FacilityID)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Aoba.xlsx")
	writeWorkbook(t, path, "Reservations", []row{{"2024-01-01", 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestExtractor(t)
	if _, err := e.Extract(ctx, []string{path}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNew_InvalidColumns(t *testing.T) {
	if _, err := New(Config{DateColumn: "1A"}, nil); err == nil {
		t.Error("expected error for invalid date column")
	}
	if _, err := New(Config{DateColumn: "A", CountColumn: "?"}, nil); err == nil {
		t.Error("expected error for invalid count column")
	}
}
