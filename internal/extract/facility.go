// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package extract

import "strings"

// FacilityMapping maps a filename substring to a facility identifier.
type FacilityMapping struct {
	Match string
	ID    int
}

// FacilityMap is an ordered substring table; the first match wins.
type FacilityMap []FacilityMapping

// Lookup returns the facility for a workbook base name.
func (m FacilityMap) Lookup(name string) (int, bool) {
	for _, e := range m {
		if e.Match != "" && strings.Contains(name, e.Match) {
			return e.ID, true
		}
	}
	return 0, false
}
