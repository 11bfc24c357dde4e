package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

const indexTemplateName = "index.html"

// indexData is rendered into the frontend page.
type indexData struct {
	Version     string
	Token       string
	DemoMode    bool
	Watchlists  []domain.Watchlist
	Frequencies []domain.Frequency
	Examples    []string
	Defaults    *domain.ScreenRequest
}

// loadIndexTemplate parses index.html from dir.
func loadIndexTemplate(dir string) (*template.Template, error) {
	if dir == "" {
		return nil, errors.New("templates directory not configured")
	}
	tmpl, err := template.ParseFiles(filepath.Join(dir, indexTemplateName))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", indexTemplateName, err)
	}
	return tmpl, nil
}

// indexHandler handles GET / by rendering the frontend page.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusNotFound, "frontend not available")
		return
	}

	data := indexData{
		Version:     s.cfg.Version,
		Token:       r.URL.Query().Get(tokenQueryParam),
		DemoMode:    s.cfg.DemoMode,
		Watchlists:  domain.ExampleWatchlists,
		Frequencies: domain.Frequencies(),
		Examples:    []string{},
		Defaults:    s.newScreenRequest(),
	}
	if s.examples != nil {
		for _, ex := range s.examples.List() {
			data.Examples = append(data.Examples, ex.Name)
		}
	}

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		s.logger.Error().Err(err).Msg("failed to render frontend")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
