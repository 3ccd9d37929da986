package controlplane

import (
	"context"
	"net/http"
)

// ListRoutes returns the worker routes of a zone.
func (c *Client) ListRoutes(ctx context.Context, zoneID string) ([]Route, error) {
	req, err := jsonRequest("list routes", http.MethodGet, nil, "zones", zoneID, "workers", "routes")
	if err != nil {
		return nil, err
	}
	var out []Route
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRoute maps pattern to script in a zone.
func (c *Client) CreateRoute(ctx context.Context, zoneID string, route Route) (Route, error) {
	req, err := jsonRequest("create route "+route.Pattern, http.MethodPost, route, "zones", zoneID, "workers", "routes")
	if err != nil {
		return Route{}, err
	}
	var out Route
	if err := c.do(ctx, req, &out); err != nil {
		return Route{}, err
	}
	return out, nil
}
