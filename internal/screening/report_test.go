package screening

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
	"github.com/helixir/thematic-screener-service/internal/domain"
)

var labeledColumns = []string{
	ColumnTimePeriod, ColumnDate, ColumnCompany, ColumnSector, ColumnIndustry, ColumnCountry,
	ColumnTicker, ColumnDocumentID, ColumnHeadline, ColumnQuote, ColumnMotivation, ColumnTheme,
}

func strPtr(s string) *string { return &s }

// tableFromRecords builds a Table with columns from column-keyed records.
// Columns absent from a record become nil cells.
func tableFromRecords(columns []string, records []map[string]any) bigdata.Table {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return bigdata.Table{Columns: columns, Rows: rows}
}

// twoCompanyResult mirrors the workflow output for two scored companies.
func twoCompanyResult() *bigdata.ScreenerResult {
	companies := tableFromRecords(
		[]string{ColumnCompany, ColumnTicker, ColumnSector, ColumnIndustry, ColumnCompositeScore, "Theme1", "Theme 2"},
		[]map[string]any{
			{ColumnCompany: "Company A", ColumnTicker: "T1", ColumnSector: "S1", ColumnIndustry: "I1",
				ColumnCompositeScore: 55.0, "Theme1": 55.0, "Theme 2": math.NaN()},
			{ColumnCompany: "Company B", ColumnTicker: "T2", ColumnSector: "S2", ColumnIndustry: "I2",
				ColumnCompositeScore: 50.0, "Theme1": 45.0, "Theme 2": 5.0},
		},
	)
	motivations := tableFromRecords(
		[]string{ColumnCompany, ColumnMotivation},
		[]map[string]any{
			{ColumnCompany: "Company A", ColumnMotivation: "Growth"},
			{ColumnCompany: "Company B", ColumnMotivation: "Decline"},
		},
	)
	labeled := tableFromRecords(labeledColumns, []map[string]any{
		{ColumnTimePeriod: "2025Q1", ColumnDate: "2025-01-01", ColumnCompany: "Company A", ColumnSector: "S1",
			ColumnIndustry: "I1", ColumnCountry: "US", ColumnTicker: "T1", ColumnDocumentID: "D1",
			ColumnHeadline: "Headline1", ColumnQuote: "Quote1", ColumnMotivation: "Growth", ColumnTheme: "Theme1"},
		{ColumnTimePeriod: "2025Q1", ColumnDate: "2025-01-02", ColumnCompany: "Company B", ColumnSector: "S2",
			ColumnIndustry: "I2", ColumnCountry: "UK", ColumnTicker: "T2", ColumnDocumentID: "D2",
			ColumnHeadline: "Headline2", ColumnQuote: "Quote2", ColumnMotivation: "Decline", ColumnTheme: "Theme 2"},
	})

	return &bigdata.ScreenerResult{
		Companies:   companies,
		Motivations: motivations,
		Labeled:     labeled,
		Taxonomy: bigdata.ThemeNode{
			Label:   "Root",
			Node:    1,
			Summary: strPtr("Root node"),
			Children: []bigdata.ThemeNode{
				{Label: "Theme1", Node: 2, Summary: strPtr("Theme1 for company")},
				{Label: "Theme 2", Node: 3, Summary: strPtr("Theme 2 for company"), Keywords: []string{"supply"}},
			},
		},
	}
}

func TestBuildReport_TwoCompanies(t *testing.T) {
	report := BuildReport(twoCompanyResult())

	require.Len(t, report.ThemeScoring, 2)

	a := report.ThemeScoring["Company A"]
	assert.Equal(t, "T1", *a.Ticker)
	assert.Equal(t, "I1", a.Industry)
	assert.Equal(t, "Growth", *a.Motivation)
	assert.Equal(t, 55, a.CompositeScore)
	assert.Equal(t, map[string]int{"Theme1": 55}, a.Themes, "missing theme must be omitted, not zero")

	b := report.ThemeScoring["Company B"]
	assert.Equal(t, "Decline", *b.Motivation)
	assert.Equal(t, 50, b.CompositeScore)
	assert.Equal(t, map[string]int{"Theme1": 45, "Theme 2": 5}, b.Themes)

	require.Len(t, report.Content, 2)
	assert.Equal(t, "D1", report.Content[0].DocumentID)
	assert.Equal(t, "Company A", report.Content[0].Company)
	assert.Equal(t, "2025Q1", report.Content[0].TimePeriod)
	assert.Equal(t, "D2", report.Content[1].DocumentID)
	assert.Equal(t, "UK", report.Content[1].Country)
	assert.Equal(t, "Theme 2", report.Content[1].Theme)
}

func TestBuildReport_Taxonomy(t *testing.T) {
	report := BuildReport(twoCompanyResult())

	tax := report.ThemeTaxonomy
	assert.Equal(t, "Root", tax.Label)
	assert.Equal(t, 1, tax.Node)
	assert.Equal(t, "Root node", *tax.Summary)
	require.Len(t, tax.Children, 2)
	assert.Equal(t, "Theme 2", tax.Children[1].Label)
	assert.Equal(t, 3, tax.Children[1].Node)
	assert.Equal(t, []string{"supply"}, tax.Children[1].Keywords)
	assert.NotNil(t, tax.Children[0].Children)
	assert.Empty(t, tax.Children[0].Children)
}

func TestBuildReport_MissingMotivation(t *testing.T) {
	result := twoCompanyResult()
	result.Motivations = tableFromRecords(
		[]string{ColumnCompany, ColumnMotivation},
		[]map[string]any{{ColumnCompany: "Company A", ColumnMotivation: "Growth"}},
	)

	report := BuildReport(result)

	assert.NotNil(t, report.ThemeScoring["Company A"].Motivation)
	assert.Nil(t, report.ThemeScoring["Company B"].Motivation)
}

func TestBuildReport_ThemeValues(t *testing.T) {
	result := &bigdata.ScreenerResult{
		Companies: tableFromRecords(
			[]string{ColumnCompany, ColumnCompositeScore, "Truncated", "Infinite", "Missing", "Text", "Whole"},
			[]map[string]any{{
				ColumnCompany:        "Acme",
				ColumnCompositeScore: 12.9,
				"Truncated":          7.8,
				"Infinite":           math.Inf(1),
				"Missing":            nil,
				"Text":               "high",
				"Whole":              3,
			}},
		),
	}

	report := BuildReport(result)

	acme := report.ThemeScoring["Acme"]
	assert.Equal(t, 12, acme.CompositeScore)
	assert.Nil(t, acme.Ticker)
	assert.Equal(t, map[string]int{"Truncated": 7, "Whole": 3}, acme.Themes)
	assert.NotNil(t, report.Content)
	assert.Empty(t, report.Content)
}

func TestBuildReport_DecodedTables(t *testing.T) {
	raw := `{
		"df_company": {"columns": ["Company","Ticker","Industry","Sector","Composite Score","Costs"],
			"rows": [["Acme","ACM","Tech","IT",5,5],["Beta",null,"Retail","Consumer",0,null]]},
		"df_motivation": {"columns": ["Company","Motivation"], "rows": [["Acme","Tariffs"]]},
		"df_labeled": {"columns": [], "rows": []},
		"theme_tree": {"label": "Tariffs", "node": 0, "children": [{"label": "Costs", "node": 1, "children": []}]}
	}`
	var result bigdata.ScreenerResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))

	report := BuildReport(&result)

	assert.Equal(t, map[string]int{"Costs": 5}, report.ThemeScoring["Acme"].Themes)
	assert.Equal(t, map[string]int{}, report.ThemeScoring["Beta"].Themes)
	assert.Nil(t, report.ThemeScoring["Beta"].Ticker)
	assert.Equal(t, "Costs", report.ThemeTaxonomy.Children[0].Label)
}

func TestBuildReport_Nil(t *testing.T) {
	report := BuildReport(nil)

	assert.Empty(t, report.ThemeScoring)
	assert.NotNil(t, report.Content)
}

func TestBuildReport_SurvivesJSONRoundTrip(t *testing.T) {
	report := BuildReport(twoCompanyResult())

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded domain.ScreenerReport
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report, decoded)
}
