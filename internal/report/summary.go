// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package report

import (
	"fmt"
	"strings"

	"github.com/tomtom215/reservesync/internal/models"
)

// MaxSummaryLines caps the per-change lines in a notification summary.
const MaxSummaryLines = 20

// Summarize renders changes as a short plain-text message for operators.
func Summarize(changes []models.ChangeRecord) string {
	if len(changes) == 0 {
		return "Reservation sync: no changes"
	}

	counts := models.CountByKind(changes)
	var b strings.Builder
	fmt.Fprintf(&b, "Reservation sync: %d change(s) (New: %d, Changed: %d, Deleted: %d)",
		len(changes), counts[models.ChangeNew], counts[models.ChangeChanged], counts[models.ChangeDeleted])

	for i, c := range changes {
		if i == MaxSummaryLines {
			fmt.Fprintf(&b, "\n... and %d more", len(changes)-MaxSummaryLines)
			break
		}
		fmt.Fprintf(&b, "\n%s facility %d %s", c.Kind, c.FacilityID, c.Period)
		if c.Kind == models.ChangeChanged {
			fmt.Fprintf(&b, " (%s -> %s days)", c.OldValue, c.NewValue)
		}
	}
	return b.String()
}
