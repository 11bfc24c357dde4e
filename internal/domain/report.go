package domain

import (
	"time"

	"github.com/google/uuid"
)

// ThemeTaxonomy is one node of the theme tree produced by the screening workflow.
type ThemeTaxonomy struct {
	Label    string          `json:"label"`
	Node     int             `json:"node"`
	Summary  *string         `json:"summary,omitempty"`
	Children []ThemeTaxonomy `json:"children"`
	Keywords []string        `json:"keywords,omitempty"`
}

// CompanyScoring holds the theme scores of one company.
type CompanyScoring struct {
	Ticker         *string        `json:"ticker"`
	Industry       string         `json:"industry"`
	Motivation     *string        `json:"motivation"`
	CompositeScore int            `json:"composite_score"`
	Themes         map[string]int `json:"themes"`
}

// LabeledChunk is one quoted excerpt supporting a company and theme match.
type LabeledChunk struct {
	TimePeriod string `json:"time_period"`
	Date       string `json:"date"`
	Company    string `json:"company"`
	Sector     string `json:"sector"`
	Industry   string `json:"industry"`
	Country    string `json:"country"`
	Ticker     string `json:"ticker"`
	DocumentID string `json:"document_id"`
	Headline   string `json:"headline"`
	Quote      string `json:"quote"`
	Motivation string `json:"motivation"`
	Theme      string `json:"theme"`
}

// ScreenerReport is the final output of a screening request. It is immutable once built.
type ScreenerReport struct {
	ThemeTaxonomy ThemeTaxonomy             `json:"theme_taxonomy"`
	ThemeScoring  map[string]CompanyScoring `json:"theme_scoring"`
	Content       []LabeledChunk            `json:"content"`
}

// WorkflowStatus is the lifecycle record of one screening request.
type WorkflowStatus struct {
	ID          uuid.UUID `json:"id"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	Logs        []string  `json:"logs"`
}

// StatusReport combines the lifecycle record with the report once it exists.
type StatusReport struct {
	ID          uuid.UUID
	Status      Status
	LastUpdated time.Time
	Logs        []string
	Report      *ScreenerReport
}

// ReportRecord is the persisted form of a completed request: echoed parameters plus the report.
type ReportRecord struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	Companies       Universe
	LLMModel        string
	Theme           string
	Focus           string
	StartDate       string
	EndDate         string
	DocumentType    string
	FiscalYear      []int
	RerankThreshold *float64
	Frequency       string
	DocumentLimit   int
	BatchSize       int
	Report          ScreenerReport
}

// NewReportRecord echoes req alongside report. The fiscal year is always stored as a list.
func NewReportRecord(id uuid.UUID, req *ScreenRequest, report ScreenerReport, now time.Time) *ReportRecord {
	fiscalYear := []int{}
	if req.FiscalYear != nil {
		fiscalYear = append(fiscalYear, req.FiscalYear...)
	}
	return &ReportRecord{
		ID:              id,
		CreatedAt:       now,
		Companies:       req.Companies,
		LLMModel:        req.LLMModel,
		Theme:           req.Theme,
		Focus:           req.Focus,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DocumentType:    req.DocumentType,
		FiscalYear:      fiscalYear,
		RerankThreshold: req.RerankThreshold,
		Frequency:       req.Frequency,
		DocumentLimit:   req.DocumentLimit,
		BatchSize:       req.BatchSize,
		Report:          report,
	}
}

// Example is a pre-computed screening served in demo mode.
type Example struct {
	Name    string         `json:"name"`
	Request ScreenRequest  `json:"request"`
	Report  ScreenerReport `json:"report"`
}
