package entity

import "time"

// ExtractionMode tells how a SlotRecord was produced.
type ExtractionMode string

const (
	// ModeAligned records have their time taken from the column header.
	ModeAligned ExtractionMode = "aligned"
	// ModeRow records come from rows whose marks could not be aligned to headers.
	// Time is blank and RawLine keeps the row text.
	ModeRow ExtractionMode = "row"
)

// SlotRecord is one available (date, court, time) combination.
type SlotRecord struct {
	Facility  string         `json:"facility"`
	Date      string         `json:"date"`
	Court     string         `json:"court"`
	Time      string         `json:"time"`
	RawMarker string         `json:"raw_marker"`
	RawLine   string         `json:"raw_line,omitempty"`
	Mode      ExtractionMode `json:"mode"`
}

// SlotKey is the structural identity used for deduplication.
type SlotKey struct {
	Facility string
	Date     string
	Court    string
	Time     string
	RawLine  string
}

func (s SlotRecord) Key() SlotKey {
	if s.Mode == ModeRow {
		return SlotKey{Facility: s.Facility, RawLine: s.RawLine}
	}
	return SlotKey{Facility: s.Facility, Date: s.Date, Court: s.Court, Time: s.Time}
}

// FacilityResult holds the slots extracted for one facility.
type FacilityResult struct {
	Facility string
	Slots    []SlotRecord
	// Skipped is set when no marked region was found for the facility.
	Skipped bool
}

// ScanResult is the aggregate outcome of one run.
type ScanResult struct {
	RunID       string
	Slots       []SlotRecord
	ReachedURL  string
	Diagnostics map[string]string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Facilities returns the facility keys present in the slots, in first-seen order.
func (r *ScanResult) Facilities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.Slots {
		if !seen[s.Facility] {
			seen[s.Facility] = true
			out = append(out, s.Facility)
		}
	}
	return out
}

// ScanRun mirrors the `scan_runs` PostgreSQL table.
type ScanRun struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"` // "running", "ok", "failed"
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ReachedURL   string     `json:"reached_url,omitempty"`
	SlotCount    int        `json:"slot_count"`
}
