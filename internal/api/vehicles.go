package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
)

func vehiclePath(id int64, suffix string) string {
	return contracts.PathVehicles + "/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	var out []fleet.Vehicle
	if err := c.do(ctx, http.MethodGet, contracts.PathVehicles, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AvailableVehicles lists vehicles a driver may pick.
func (c *Client) AvailableVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	var out []fleet.Vehicle
	if err := c.do(ctx, http.MethodGet, contracts.PathVehiclesAvailable, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetVehicle(ctx context.Context, id int64) (*fleet.Vehicle, error) {
	var out fleet.Vehicle
	if err := c.do(ctx, http.MethodGet, vehiclePath(id, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateVehicle(ctx context.Context, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	var out fleet.Vehicle
	if err := c.do(ctx, http.MethodPost, contracts.PathVehicles, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVehicle(ctx context.Context, id int64, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	var out fleet.Vehicle
	if err := c.do(ctx, http.MethodPut, vehiclePath(id, ""), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, vehiclePath(id, ""), nil, nil, nil)
}

// UpdateVehicleLocation reports a position. The backend answers with an empty body.
func (c *Client) UpdateVehicleLocation(ctx context.Context, id int64, lat, lng float64) error {
	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	return c.do(ctx, http.MethodPut, vehiclePath(id, "/location"), q, nil, nil)
}
