package bigdata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// maxEventSize bounds a single NDJSON event. The result event carries every table.
const maxEventSize = 64 << 20

// Event types streamed by the thematic screener run endpoint.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// ProgressFunc receives human-readable progress messages in emission order.
type ProgressFunc func(message string)

// ScreenerParams are the inputs of one thematic screener run.
type ScreenerParams struct {
	LLMModel        string   `json:"llm_model"`
	Theme           string   `json:"main_theme"`
	Focus           string   `json:"focus"`
	Companies       []Entity `json:"companies"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	DocumentType    string   `json:"document_type"`
	FiscalYear      []int    `json:"fiscal_year"`
	RerankThreshold *float64 `json:"rerank_threshold"`
	Frequency       string   `json:"frequency"`
	DocumentLimit   int      `json:"document_limit"`
	BatchSize       int      `json:"batch_size"`
}

// Table is a column-oriented result table. Numeric cells decode as float64 and
// missing cells as nil.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Records returns each row as a column-name keyed map.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// ThemeNode is one node of the generated theme tree.
type ThemeNode struct {
	Label    string      `json:"label"`
	Node     int         `json:"node"`
	Summary  *string     `json:"summary,omitempty"`
	Children []ThemeNode `json:"children"`
	Keywords []string    `json:"keywords,omitempty"`
}

// ScreenerResult holds the tables and theme tree produced by a run.
type ScreenerResult struct {
	Companies   Table     `json:"df_company"`
	Motivations Table     `json:"df_motivation"`
	Labeled     Table     `json:"df_labeled"`
	Taxonomy    ThemeNode `json:"theme_tree"`
}

type screenerEvent struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// RunThematicScreener starts a run and blocks until it produces a result.
// Progress events are handed to progress, when non-nil, in the order they arrive.
func (c *Client) RunThematicScreener(ctx context.Context, params ScreenerParams, progress ProgressFunc) (*ScreenerResult, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v1/research-tools/thematic-screener/run", params)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if c.config.LLMAPIKey != "" {
		req.Header.Set(LLMAPIKeyHeader, c.config.LLMAPIKey)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return readScreenerStream(resp.Body, progress)
}

// readScreenerStream consumes NDJSON events until a result or error event.
func readScreenerStream(body io.Reader, progress ProgressFunc) (*ScreenerResult, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event screenerEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("decoding workflow event: %w", err)
		}

		switch event.Type {
		case EventProgress:
			if progress != nil && event.Message != "" {
				progress(event.Message)
			}
		case EventResult:
			var result ScreenerResult
			if err := json.Unmarshal(event.Result, &result); err != nil {
				return nil, fmt.Errorf("decoding workflow result: %w", err)
			}
			return &result, nil
		case EventError:
			return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowFailed, event.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading workflow stream: %w", err)
	}
	return nil, fmt.Errorf("%w: stream ended without a result", domain.ErrWorkflowFailed)
}
