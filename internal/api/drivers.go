package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
)

func driverPath(id int64, suffix string) string {
	return contracts.PathDrivers + "/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) ListDrivers(ctx context.Context) ([]fleet.Driver, error) {
	var out []fleet.Driver
	if err := c.do(ctx, http.MethodGet, contracts.PathDrivers, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDriver(ctx context.Context, id int64) (*fleet.Driver, error) {
	var out fleet.Driver
	if err := c.do(ctx, http.MethodGet, driverPath(id, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the driver record of the authenticated user.
func (c *Client) Me(ctx context.Context) (*fleet.Driver, error) {
	var out fleet.Driver
	if err := c.do(ctx, http.MethodGet, contracts.PathDriverMe, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDriverStatus(ctx context.Context, id int64, status fleet.DriverStatus) (*fleet.Driver, error) {
	var out fleet.Driver
	q := url.Values{"status": {status.String()}}
	if err := c.do(ctx, http.MethodPut, driverPath(id, "/status"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type assignBody struct {
	VehicleID *int64 `json:"vehicleId"`
}

// AssignVehicle sets the driver's vehicle; a nil vehicleID unassigns it.
func (c *Client) AssignVehicle(ctx context.Context, driverID int64, vehicleID *int64) (*fleet.Driver, error) {
	var out fleet.Driver
	if err := c.do(ctx, http.MethodPut, driverPath(driverID, ""), nil, assignBody{VehicleID: vehicleID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DriverTrips(ctx context.Context, driverID int64) ([]fleet.Trip, error) {
	var out []fleet.Trip
	if err := c.do(ctx, http.MethodGet, driverPath(driverID, "/trips"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
