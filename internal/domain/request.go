package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted for start_date and end_date.
const DateLayout = "2006-01-02"

// Request defaults applied before the body is decoded.
const (
	DefaultLLMModel      = "openai::gpt-4o-mini"
	DefaultDocumentType  = DocumentTypeTranscripts
	DefaultFrequency     = FrequencyYearly
	DefaultDocumentLimit = 100
	DefaultBatchSize     = 10
)

// ScreenRequest is a thematic screening request as submitted by a client.
type ScreenRequest struct {
	Theme           string      `json:"theme" validate:"required"`
	Focus           string      `json:"focus"`
	Companies       Universe    `json:"companies"`
	StartDate       string      `json:"start_date"`
	EndDate         string      `json:"end_date"`
	LLMModel        string      `json:"llm_model" validate:"required"`
	FiscalYear      FiscalYears `json:"fiscal_year"`
	DocumentType    string      `json:"document_type"`
	RerankThreshold *float64    `json:"rerank_threshold" validate:"omitempty,gte=0,lte=1"`
	Frequency       string      `json:"frequency"`
	DocumentLimit   int         `json:"document_limit" validate:"gt=0"`
	BatchSize       int         `json:"batch_size" validate:"gt=0"`
}

// NewScreenRequest returns a request populated with default values.
// Decoding a body into the result keeps the defaults for omitted fields.
func NewScreenRequest() *ScreenRequest {
	return &ScreenRequest{
		LLMModel:      DefaultLLMModel,
		DocumentType:  string(DefaultDocumentType),
		Frequency:     string(DefaultFrequency),
		DocumentLimit: DefaultDocumentLimit,
		BatchSize:     DefaultBatchSize,
	}
}

// DefaultFiscalYears is the fiscal year window applied when a client omits
// both document_type and fiscal_year: the previous, current and next year.
func DefaultFiscalYears(today time.Time) FiscalYears {
	year := today.Year()
	return FiscalYears{year - 1, year, year + 1}
}

// DateRange parses the start and end dates.
func (r *ScreenRequest) DateRange() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start_date: %w", err)
	}
	end, err = time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end_date: %w", err)
	}
	return start, end, nil
}

// InclusiveSpanDays returns the number of calendar days covered by [start, end].
func InclusiveSpanDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// UniverseKind describes which form the companies field took.
type UniverseKind int

const (
	// UniverseEmpty means the field was absent or null.
	UniverseEmpty UniverseKind = iota
	// UniverseEntities means an explicit list of entity identifiers.
	UniverseEntities
	// UniverseWatchlist means a single watchlist identifier.
	UniverseWatchlist
	// UniverseInvalid means the field had an unsupported JSON shape.
	UniverseInvalid
)

// Universe is the company universe of a request: either a list of entity IDs
// or a single watchlist ID.
type Universe struct {
	EntityIDs   []string
	WatchlistID string
	kind        UniverseKind
}

// EntityUniverse builds a universe from explicit entity identifiers.
func EntityUniverse(ids ...string) Universe {
	return Universe{EntityIDs: ids, kind: UniverseEntities}
}

// WatchlistUniverse builds a universe from a watchlist identifier.
func WatchlistUniverse(id string) Universe {
	return Universe{WatchlistID: id, kind: UniverseWatchlist}
}

// Kind reports which form the universe took.
func (u Universe) Kind() UniverseKind {
	return u.kind
}

// UnmarshalJSON accepts a JSON array of strings or a single string.
// Other shapes are recorded as UniverseInvalid and left to validation.
func (u *Universe) UnmarshalJSON(data []byte) error {
	*u = Universe{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			u.kind = UniverseInvalid
			return nil
		}
		u.EntityIDs = ids
		u.kind = UniverseEntities
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			u.kind = UniverseInvalid
			return nil
		}
		u.WatchlistID = id
		u.kind = UniverseWatchlist
	default:
		u.kind = UniverseInvalid
	}
	return nil
}

// MarshalJSON writes the list form or the watchlist string.
func (u Universe) MarshalJSON() ([]byte, error) {
	switch u.kind {
	case UniverseEntities:
		if u.EntityIDs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(u.EntityIDs)
	case UniverseWatchlist:
		return json.Marshal(u.WatchlistID)
	default:
		return []byte("null"), nil
	}
}

// FiscalYears holds one or more fiscal years. A nil value means the field was absent.
type FiscalYears []int

// UnmarshalJSON accepts a single integer or a list of integers.
func (f *FiscalYears) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var years []int
		if err := json.Unmarshal(trimmed, &years); err != nil {
			return fmt.Errorf("fiscal_year must be an integer or a list of integers: %w", err)
		}
		if years == nil {
			years = []int{}
		}
		*f = years
		return nil
	}
	var year int
	if err := json.Unmarshal(trimmed, &year); err != nil {
		return fmt.Errorf("fiscal_year must be an integer or a list of integers: %w", err)
	}
	*f = FiscalYears{year}
	return nil
}
