// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// splitList splits a comma-separated value and drops empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseFacilityMap parses "Aoba=7,Midori=8" into an ordered mapping list.
// Order is preserved because the first matching substring wins.
func ParseFacilityMap(s string) ([]FacilityMapping, error) {
	entries := splitList(s)
	out := make([]FacilityMapping, 0, len(entries))
	for _, entry := range entries {
		match, rawID, ok := strings.Cut(entry, "=")
		match = strings.TrimSpace(match)
		if !ok || match == "" {
			return nil, fmt.Errorf("entry %q must be substring=id", entry)
		}
		id, err := strconv.Atoi(strings.TrimSpace(rawID))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("entry %q has invalid facility id", entry)
		}
		out = append(out, FacilityMapping{Match: match, ID: id})
	}
	return out, nil
}
