package bigdata

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// Watchlist is a stored list of entity IDs.
type Watchlist struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// GetWatchlist fetches a watchlist by ID. A 404 maps to a domain.NotFoundError.
func (c *Client) GetWatchlist(ctx context.Context, id string) (*Watchlist, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/v1/watchlists/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var wl Watchlist
	if err := c.doJSON(req, &wl); err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.NewNotFoundError("watchlist", id)
		}
		return nil, err
	}
	if wl.ID == "" {
		wl.ID = id
	}
	return &wl, nil
}
