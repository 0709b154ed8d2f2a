// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/reservesync/internal/detect"
	"github.com/tomtom215/reservesync/internal/filelock"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
	"github.com/tomtom215/reservesync/internal/retry"
)

// workbookMu serialises every workbook open in the process. The spreadsheet
// engine is not safe for concurrent handles and share contention is costly.
var workbookMu sync.Mutex

// Status is the per-file extraction outcome.
type Status string

const (
	StatusOK              Status = "ok"
	StatusSkippedLocked   Status = "skipped_locked"
	StatusSkippedUnmapped Status = "skipped_unmapped"
	StatusNoSheet         Status = "no_sheet"
	StatusFailed          Status = "failed"
)

// ErrNoSheet is returned when a workbook contains no worksheets.
var ErrNoSheet = errors.New("workbook has no worksheets")

// Config describes the sheet layout.
type Config struct {
	TenantID    int
	SheetName   string
	DateColumn  string
	CountColumn string // empty: right of DateColumn
	HeaderRows  int
	LockTimeout time.Duration
	Pattern     string
	Retry       retry.Policy
}

// FileOutcome records what happened to one workbook.
type FileOutcome struct {
	Path       string
	FacilityID int
	Status     Status
	// DegradedSheet is set when SheetName was absent and the first sheet was read.
	DegradedSheet bool
	Rows          int
	InvalidRows   int
	Err           error
}

// Result aggregates one extraction run.
type Result struct {
	Records   []models.MonthlyReservationRecord
	Files     []FileOutcome
	Succeeded int
	Skipped   int
	Failed    int
}

// FacilityIDs returns the distinct facilities that were extracted successfully.
func (r Result) FacilityIDs() []int {
	var ids []int
	for _, f := range r.Files {
		if f.Status == StatusOK && !slices.Contains(ids, f.FacilityID) {
			ids = append(ids, f.FacilityID)
		}
	}
	return ids
}

// Extractor reads monthly reservation matrices from workbooks.
type Extractor struct {
	cfg        Config
	facilities FacilityMap
	probe      detect.LockProbe
	now        func() time.Time
	dateIdx    int
	countIdx   int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for the current-year filter.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithProbe replaces the default file-lock probe.
func WithProbe(p detect.LockProbe) Option {
	return func(e *Extractor) {
		e.probe = p
	}
}

// New validates the column layout and returns an Extractor.
func New(cfg Config, facilities FacilityMap, opts ...Option) (*Extractor, error) {
	if cfg.DateColumn == "" {
		cfg.DateColumn = "A"
	}
	if cfg.Pattern == "" {
		cfg.Pattern = detect.DefaultPattern
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * time.Second
	}
	dateIdx, err := columnIndex(cfg.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("date column %q: %w", cfg.DateColumn, err)
	}
	countIdx := dateIdx + 1
	if cfg.CountColumn != "" {
		if countIdx, err = columnIndex(cfg.CountColumn); err != nil {
			return nil, fmt.Errorf("count column %q: %w", cfg.CountColumn, err)
		}
	}

	e := &Extractor{
		cfg:        cfg,
		facilities: facilities,
		probe:      filelock.NewProbe(),
		now:        time.Now,
		dateIdx:    dateIdx,
		countIdx:   countIdx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// dayValues collects observed counts per record key and day of month.
type dayValues map[models.RecordKey]map[int]string

func (d dayValues) merge(other dayValues) {
	for key, days := range other {
		dst, ok := d[key]
		if !ok {
			dst = make(map[int]string, len(days))
			d[key] = dst
		}
		for day, v := range days {
			dst[day] = v
		}
	}
}

// ExtractAll re-enumerates basePath and extracts every unlocked workbook.
func (e *Extractor) ExtractAll(ctx context.Context, basePath string) (Result, error) {
	rels, err := detect.ListWorkbooks(ctx, os.DirFS(basePath), e.cfg.Pattern, e.cfg.Retry)
	if err != nil {
		return Result{}, err
	}
	files := make([]string, len(rels))
	for i, rel := range rels {
		files[i] = filepath.Join(basePath, filepath.FromSlash(rel))
	}
	return e.Extract(ctx, files)
}

// Extract reads files in order. Per-file failures are recorded in the result
// and do not stop the batch; only context cancellation returns an error.
func (e *Extractor) Extract(ctx context.Context, files []string) (Result, error) {
	log := logging.Ctx(ctx).With().Str("component", "extractor").Logger()

	var res Result
	observed := make(dayValues)
	sources := make(map[models.RecordKey]string)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, values := e.extractFile(ctx, path)
		res.Files = append(res.Files, out)
		metrics.FilesExtracted.WithLabelValues(string(out.Status)).Inc()

		switch out.Status {
		case StatusOK:
			res.Succeeded++
			observed.merge(values)
			for key := range values {
				sources[key] = path
			}
		case StatusSkippedLocked, StatusSkippedUnmapped:
			res.Skipped++
		default:
			if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
				return res, out.Err
			}
			res.Failed++
			log.Warn().Err(out.Err).Str("path", path).Str("status", string(out.Status)).Msg("Workbook extraction failed")
		}
	}

	res.Records = buildRecords(observed, sources)
	metrics.RecordsExtracted.Add(float64(len(res.Records)))

	log.Info().
		Int("files", len(files)).
		Int("succeeded", res.Succeeded).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("records", len(res.Records)).
		Msg("Extraction complete")

	return res, nil
}

func (e *Extractor) extractFile(ctx context.Context, path string) (FileOutcome, dayValues) {
	out := FileOutcome{Path: path}
	log := logging.Ctx(ctx)

	facilityID, ok := e.facilities.Lookup(filepath.Base(path))
	if !ok {
		out.Status = StatusSkippedUnmapped
		log.Warn().Str("path", path).Msg("Workbook name matches no facility mapping, skipping")
		return out, nil
	}
	out.FacilityID = facilityID

	if !e.probe.IsUnlocked(ctx, path, e.cfg.LockTimeout) {
		out.Status = StatusSkippedLocked
		log.Debug().Str("path", path).Msg("Workbook locked, skipping extraction")
		return out, nil
	}

	workbookMu.Lock()
	defer workbookMu.Unlock()

	values, err := e.readWorkbook(ctx, path, facilityID, &out)
	switch {
	case errors.Is(err, ErrNoSheet):
		out.Status = StatusNoSheet
		out.Err = err
	case err != nil:
		out.Status = StatusFailed
		out.Err = err
	default:
		out.Status = StatusOK
	}
	return out, values
}

func (e *Extractor) readWorkbook(ctx context.Context, path string, facilityID int, out *FileOutcome) (dayValues, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Ctx(ctx).Debug().Err(cerr).Str("path", path).Msg("Failed to close workbook")
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	sheet := e.cfg.SheetName
	if !slices.Contains(sheets, sheet) {
		logging.Ctx(ctx).Warn().
			Str("path", path).
			Str("expected", e.cfg.SheetName).
			Str("using", sheets[0]).
			Msg("Degraded sheet match, reading first worksheet")
		sheet = sheets[0]
		out.DegradedSheet = true
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	year := e.now().Year()
	values := make(dayValues)
	rowNum := 0

	for rows.Next() {
		rowNum++
		if rowNum <= e.cfg.HeaderRows {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		rawDate := cell(cols, e.dateIdx)
		rawCount := cell(cols, e.countIdx)
		if rawDate == "" || rawCount == "" {
			continue
		}
		out.Rows++

		date, ok := parseDate(rawDate)
		if !ok {
			out.InvalidRows++
			continue
		}
		if date.Year() != year {
			continue
		}
		count, ok := parseCount(rawCount)
		if !ok {
			out.InvalidRows++
			continue
		}

		key := models.RecordKey{
			TenantID:   e.cfg.TenantID,
			FacilityID: facilityID,
			Year:       date.Year(),
			Month:      date.Month(),
		}
		days, ok := values[key]
		if !ok {
			days = make(map[int]string)
			values[key] = days
		}
		days[date.Day()] = strconv.Itoa(count)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if out.InvalidRows > 0 {
		logging.Ctx(ctx).Debug().Str("path", path).Int("invalid_rows", out.InvalidRows).Msg("Skipped unparseable rows")
	}
	return values, nil
}

// buildRecords expands observed days into zero-filled monthly arrays, ordered
// by facility then period for stable downstream batching.
func buildRecords(observed dayValues, sources map[models.RecordKey]string) []models.MonthlyReservationRecord {
	records := make([]models.MonthlyReservationRecord, 0, len(observed))
	for key, days := range observed {
		rec := models.NewMonthlyRecord(key)
		rec.SourceFile = sources[key]
		for day, v := range days {
			rec.SetDay(day, v)
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b models.MonthlyReservationRecord) int {
		if c := a.Key.FacilityID - b.Key.FacilityID; c != 0 {
			return c
		}
		if c := a.Key.Year - b.Key.Year; c != 0 {
			return c
		}
		return int(a.Key.Month) - int(b.Key.Month)
	})
	return records
}
