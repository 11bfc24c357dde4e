package screening

import (
	"fmt"
	"math"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
	"github.com/helixir/thematic-screener-service/internal/domain"
)

// Column names of the company score table that are not theme scores.
const (
	ColumnCompany        = "Company"
	ColumnTicker         = "Ticker"
	ColumnIndustry       = "Industry"
	ColumnSector         = "Sector"
	ColumnCompositeScore = "Composite Score"
	ColumnMotivation     = "Motivation"
)

var fixedCompanyColumns = map[string]bool{
	ColumnCompany:        true,
	ColumnTicker:         true,
	ColumnIndustry:       true,
	ColumnSector:         true,
	ColumnCompositeScore: true,
}

// Column names of the labeled evidence table.
const (
	ColumnTimePeriod = "Time Period"
	ColumnDate       = "Date"
	ColumnCountry    = "Country"
	ColumnDocumentID = "Document ID"
	ColumnHeadline   = "Headline"
	ColumnQuote      = "Quote"
	ColumnTheme      = "Theme"
)

// BuildReport turns the workflow tables into a ScreenerReport.
//
// A company without a motivation row gets a nil motivation. Theme columns
// holding a missing or non-finite value are left out of the company's themes.
func BuildReport(result *bigdata.ScreenerResult) domain.ScreenerReport {
	if result == nil {
		return domain.ScreenerReport{
			ThemeTaxonomy: domain.ThemeTaxonomy{Children: []domain.ThemeTaxonomy{}},
			ThemeScoring:  map[string]domain.CompanyScoring{},
			Content:       []domain.LabeledChunk{},
		}
	}

	motivations := motivationIndex(result.Motivations)

	scoring := make(map[string]domain.CompanyScoring, len(result.Companies.Rows))
	for _, rec := range result.Companies.Records() {
		name := stringValue(rec[ColumnCompany])

		themes := make(map[string]int)
		for col, v := range rec {
			if fixedCompanyColumns[col] {
				continue
			}
			if score, ok := intValue(v); ok {
				themes[col] = score
			}
		}

		composite, _ := intValue(rec[ColumnCompositeScore])
		scoring[name] = domain.CompanyScoring{
			Ticker:         optionalString(rec[ColumnTicker]),
			Industry:       stringValue(rec[ColumnIndustry]),
			Motivation:     motivations[name],
			CompositeScore: composite,
			Themes:         themes,
		}
	}

	labeled := result.Labeled.Records()
	content := make([]domain.LabeledChunk, 0, len(labeled))
	for _, rec := range labeled {
		content = append(content, domain.LabeledChunk{
			TimePeriod: stringValue(rec[ColumnTimePeriod]),
			Date:       stringValue(rec[ColumnDate]),
			Company:    stringValue(rec[ColumnCompany]),
			Sector:     stringValue(rec[ColumnSector]),
			Industry:   stringValue(rec[ColumnIndustry]),
			Country:    stringValue(rec[ColumnCountry]),
			Ticker:     stringValue(rec[ColumnTicker]),
			DocumentID: stringValue(rec[ColumnDocumentID]),
			Headline:   stringValue(rec[ColumnHeadline]),
			Quote:      stringValue(rec[ColumnQuote]),
			Motivation: stringValue(rec[ColumnMotivation]),
			Theme:      stringValue(rec[ColumnTheme]),
		})
	}

	return domain.ScreenerReport{
		ThemeTaxonomy: mirrorTaxonomy(result.Taxonomy),
		ThemeScoring:  scoring,
		Content:       content,
	}
}

// motivationIndex maps company names to the first motivation listed for them.
func motivationIndex(t bigdata.Table) map[string]*string {
	out := make(map[string]*string)
	for _, rec := range t.Records() {
		name := stringValue(rec[ColumnCompany])
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = optionalString(rec[ColumnMotivation])
	}
	return out
}

func mirrorTaxonomy(node bigdata.ThemeNode) domain.ThemeTaxonomy {
	children := make([]domain.ThemeTaxonomy, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, mirrorTaxonomy(child))
	}

	var keywords []string
	if len(node.Keywords) > 0 {
		keywords = append([]string(nil), node.Keywords...)
	}

	return domain.ThemeTaxonomy{
		Label:    node.Label,
		Node:     node.Node,
		Summary:  node.Summary,
		Children: children,
		Keywords: keywords,
	}
}

// intValue truncates a finite numeric cell to an int.
func intValue(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func optionalString(v any) *string {
	if v == nil {
		return nil
	}
	s := stringValue(v)
	return &s
}
