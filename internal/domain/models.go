// Package domain provides domain models for the thematic screener service.
package domain

import (
	"sort"
	"strings"
)

// Status represents the lifecycle state of a screening request.
// These values must match the status column of workflow_status.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// statusRank orders statuses so transitions can only move forward.
var statusRank = map[Status]int{
	StatusQueued:     0,
	StatusInProgress: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// IsTerminal returns true if the status represents a final state that will not change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
// Re-recording the current non-terminal status is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// DocumentType identifies the corpus searched by the screening workflow.
type DocumentType string

const (
	DocumentTypeAll         DocumentType = "ALL"
	DocumentTypeFilings     DocumentType = "FILINGS"
	DocumentTypeTranscripts DocumentType = "TRANSCRIPTS"
	DocumentTypeNews        DocumentType = "NEWS"
	DocumentTypeFiles       DocumentType = "FILES"
)

// documentTypes lists the supported vocabulary in display order.
var documentTypes = []DocumentType{
	DocumentTypeAll,
	DocumentTypeFilings,
	DocumentTypeTranscripts,
	DocumentTypeNews,
	DocumentTypeFiles,
}

// DocumentTypes returns the recognized document types.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

// ParseDocumentType resolves s case-insensitively against the vocabulary.
func ParseDocumentType(s string) (DocumentType, bool) {
	candidate := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, dt := range documentTypes {
		if dt == candidate {
			return dt, true
		}
	}
	return "", false
}

// RequiresFiscalYear reports whether requests over this corpus must carry a fiscal year.
func (d DocumentType) RequiresFiscalYear() bool {
	return d == DocumentTypeTranscripts || d == DocumentTypeFilings
}

// Frequency is the time bucket used when scoring a theme over the date range.
type Frequency string

const (
	FrequencyDaily     Frequency = "D"
	FrequencyWeekly    Frequency = "W"
	FrequencyMonthly   Frequency = "M"
	FrequencyQuarterly Frequency = "3M"
	FrequencyYearly    Frequency = "Y"
)

// minimumDays is the shortest inclusive date span each frequency accepts.
var minimumDays = map[Frequency]int{
	FrequencyDaily:     1,
	FrequencyWeekly:    7,
	FrequencyMonthly:   30,
	FrequencyQuarterly: 90,
	FrequencyYearly:    365,
}

var frequencyNames = map[string]Frequency{
	"daily":     FrequencyDaily,
	"weekly":    FrequencyWeekly,
	"monthly":   FrequencyMonthly,
	"quarterly": FrequencyQuarterly,
	"yearly":    FrequencyYearly,
}

// ParseFrequency accepts either a frequency code (D, W, M, 3M, Y) or its name.
func ParseFrequency(s string) (Frequency, bool) {
	trimmed := strings.TrimSpace(s)
	if _, ok := minimumDays[Frequency(strings.ToUpper(trimmed))]; ok {
		return Frequency(strings.ToUpper(trimmed)), true
	}
	f, ok := frequencyNames[strings.ToLower(trimmed)]
	return f, ok
}

// MinimumDays returns the minimum inclusive span in days for the frequency, or 0 if unknown.
func (f Frequency) MinimumDays() int {
	return minimumDays[f]
}

// Frequencies returns the recognized frequency codes ordered by their minimum span.
func Frequencies() []Frequency {
	out := make([]Frequency, 0, len(minimumDays))
	for f := range minimumDays {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return minimumDays[out[i]] < minimumDays[out[j]] })
	return out
}
