package httpserver

import (
	"time"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type validationErrorResponse struct {
	Error   string                   `json:"error"`
	Details []domain.ValidationError `json:"details"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type submitResponse struct {
	RequestID string        `json:"request_id"`
	Status    domain.Status `json:"status"`
}

type statusResponse struct {
	RequestID   string                 `json:"request_id"`
	LastUpdated time.Time              `json:"last_updated"`
	Status      domain.Status          `json:"status"`
	Logs        []string               `json:"logs"`
	Report      *domain.ScreenerReport `json:"report"`
}

type exampleSummary struct {
	Name  string `json:"name"`
	Theme string `json:"theme"`
	Focus string `json:"focus,omitempty"`
}

type listExamplesResponse struct {
	Examples []exampleSummary `json:"examples"`
}

// newStatusResponse converts a store record into its wire form.
// Logs are never null on the wire.
func newStatusResponse(sr *domain.StatusReport) statusResponse {
	logs := sr.Logs
	if logs == nil {
		logs = []string{}
	}
	return statusResponse{
		RequestID:   sr.ID.String(),
		LastUpdated: sr.LastUpdated,
		Status:      sr.Status,
		Logs:        logs,
		Report:      sr.Report,
	}
}
