package bigdata

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// EntityTypeCompany marks company entities in the knowledge graph.
const EntityTypeCompany = "COMP"

// Entity is a knowledge graph entity.
type Entity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	Ticker     string `json:"ticker,omitempty"`
	Country    string `json:"country,omitempty"`
	Sector     string `json:"sector,omitempty"`
	Industry   string `json:"industry,omitempty"`
}

// IsCompany reports whether the entity is a company.
func (e Entity) IsCompany() bool {
	return e.EntityType == EntityTypeCompany
}

type entitiesByIDRequest struct {
	Values []string `json:"values"`
}

type entitiesByIDResponse struct {
	Results map[string]*Entity `json:"results"`
}

// GetEntities looks up entities by ID. The result follows the order of ids,
// including repeated IDs; IDs the knowledge graph does not know are skipped.
//
// IDs missing from the cache are fetched in batches, several batches at a time.
// Any failed batch fails the whole lookup.
func (c *Client) GetEntities(ctx context.Context, ids []string) ([]Entity, error) {
	found := make(map[string]Entity, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if c.entities != nil {
			if e, ok := c.entities.Get(id); ok {
				found[id] = e
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := c.fetchEntities(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, e := range fetched {
			found[id] = e
			if c.entities != nil {
				c.entities.Add(id, e)
			}
		}
	}

	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := found[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// fetchEntities runs the batched lookups concurrently.
func (c *Client) fetchEntities(ctx context.Context, ids []string) (map[string]Entity, error) {
	batches := chunk(ids, c.config.LookupBatchSize)
	results := make([]map[string]*Entity, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.LookupConcurrency)

	for i, batch := range batches {
		g.Go(func() error {
			res, err := c.lookupBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("knowledge graph batch %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Entity, len(ids))
	for _, res := range results {
		for id, e := range res {
			if e == nil {
				continue
			}
			entity := *e
			if entity.ID == "" {
				entity.ID = id
			}
			out[id] = entity
		}
	}
	return out, nil
}

func (c *Client) lookupBatch(ctx context.Context, ids []string) (map[string]*Entity, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v1/knowledge-graph/entities/id", entitiesByIDRequest{Values: ids})
	if err != nil {
		return nil, err
	}

	var resp entitiesByIDResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
