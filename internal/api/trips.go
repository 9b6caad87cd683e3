package api

import (
	"context"
	"net/http"
	"strconv"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
)

func (c *Client) StartTrip(ctx context.Context, id int64) (*fleet.Trip, error) {
	return c.tripAction(ctx, id, "start")
}

func (c *Client) CompleteTrip(ctx context.Context, id int64) (*fleet.Trip, error) {
	return c.tripAction(ctx, id, "complete")
}

func (c *Client) tripAction(ctx context.Context, id int64, action string) (*fleet.Trip, error) {
	var out fleet.Trip
	path := contracts.PathTrips + "/" + strconv.FormatInt(id, 10) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
