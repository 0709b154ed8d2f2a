// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/metrics"
	"github.com/tomtom215/reservesync/internal/models"
)

const (
	// FileSuffix ends every audit file name.
	FileSuffix = "_proof.csv"

	// TimestampLayout prefixes audit file names.
	TimestampLayout = "20060102_150405"

	// utf8BOM lets spreadsheet applications detect the encoding.
	utf8BOM = "\ufeff"
)

// Header is the fixed column order of an audit file.
var Header = []string{"ChangeType", "FacilityId/StoreId", "Date", "TimeSlot", "OldValue", "NewValue", "UpdatedAt"}

// Writer persists change sets as CSV audit files.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the report directory.
func (w *Writer) Dir() string {
	return w.dir
}

// FileName returns the audit file name for a cycle that ran at now.
func FileName(now time.Time) string {
	return now.Format(TimestampLayout) + FileSuffix
}

// Write stores changes in a new audit file and returns its path.
// No file is written for an empty change set; the returned path is then "".
func (w *Writer) Write(changes []models.ChangeRecord, now time.Time) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path, f, err := w.create(now)
	if err != nil {
		return "", err
	}

	if err := encode(f, changes); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close report %s: %w", path, err)
	}

	metrics.ReportsWritten.Inc()
	logging.Info().Str("path", path).Int("changes", len(changes)).Msg("Audit report written")
	return path, nil
}

// create opens a fresh file for now, adding a numeric suffix when two cycles
// land in the same second.
func (w *Writer) create(now time.Time) (string, *os.File, error) {
	base := now.Format(TimestampLayout)
	for i := 0; i < 100; i++ {
		name := base + FileSuffix
		if i > 0 {
			name = base + "_" + strconv.Itoa(i) + FileSuffix
		}
		path := filepath.Join(w.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("create report: %w", err)
		}
	}
	return "", nil, fmt.Errorf("create report: too many reports for %s", base)
}

func encode(f *os.File, changes []models.ChangeRecord) error {
	buf := bufio.NewWriter(f)
	if _, err := buf.WriteString(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(buf)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, c := range changes {
		row := []string{
			string(c.Kind),
			strconv.Itoa(c.FacilityID),
			c.Period,
			c.TimeSlot,
			c.OldValue,
			c.NewValue,
			c.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
