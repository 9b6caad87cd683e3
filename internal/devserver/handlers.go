package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"smart-fleet/internal/domain/fleet"
)

// ----- auth -----

func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds fleet.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if err := creds.Validate(); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	u, err := srv.store.Authenticate(creds.Username, creds.Password)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.issue(w, r, u)
}

func (srv *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reg fleet.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if err := reg.Validate(); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	// the username "admin" registers an administrator, everyone else a driver
	role := fleet.RoleDriver
	if reg.Username == SeedAdmin {
		role = fleet.RoleAdmin
	}
	u, err := srv.store.AddUser(reg.Username, reg.Password, reg.Email, role, reg.FullName, reg.License)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.logger.Info(ctx, "user_registered", "User registered", map[string]any{"username": u.Username, "role": u.Role.String()})
	srv.issue(w, r, u)
}

func (srv *Server) issue(w http.ResponseWriter, r *http.Request, u *userRecord) {
	ctx := r.Context()
	token, _, err := srv.auth.IssueUserToken(strconv.FormatInt(u.ID, 10), u.Username, u.Role)
	if err != nil {
		srv.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, fleet.AuthResponse{
		Token:    token,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	})
}

func (srv *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(HealthText))
}

// ----- drivers -----

func (srv *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	srv.jsonResponse(r.Context(), w, http.StatusOK, srv.store.Drivers())
}

func (srv *Server) handleDriverMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := callerUserID(r)
	if !ok {
		srv.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", nil)
		return
	}
	d, err := srv.store.DriverByUserID(uid)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, d)
}

func (srv *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid driver id", err)
		return
	}
	d, err := srv.store.Driver(id)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, d)
}

// handleUpdateDriver accepts {"vehicleId": n|null, "status": "..."}; absent
// keys are left alone.
func (srv *Server) handleUpdateDriver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid driver id", err)
		return
	}
	if !srv.ownsDriver(r, id) {
		srv.httpError(ctx, w, http.StatusForbidden, "drivers may only update themselves", nil)
		return
	}

	var raw map[string]any
	if err := decodeJSON(w, r, &raw); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	d, err := srv.store.Driver(id)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	if v, ok := raw["vehicleId"]; ok {
		var vid *int64
		switch n := v.(type) {
		case nil:
		case float64:
			vehicleID := int64(n)
			vid = &vehicleID
		default:
			srv.httpError(ctx, w, http.StatusBadRequest, "vehicleId must be a number or null", nil)
			return
		}
		if d, err = srv.store.AssignVehicle(id, vid); err != nil {
			srv.storeError(ctx, w, err)
			return
		}
	}
	if v, ok := raw["status"]; ok {
		s, _ := v.(string)
		status, err := fleet.ParseDriverStatus(s)
		if err != nil {
			srv.storeError(ctx, w, err)
			return
		}
		if d, err = srv.store.SetDriverStatus(id, status); err != nil {
			srv.storeError(ctx, w, err)
			return
		}
	}
	srv.jsonResponse(ctx, w, http.StatusOK, d)
}

func (srv *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid driver id", err)
		return
	}
	if !srv.ownsDriver(r, id) {
		srv.httpError(ctx, w, http.StatusForbidden, "drivers may only update themselves", nil)
		return
	}
	status, err := fleet.ParseDriverStatus(r.URL.Query().Get("status"))
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	d, err := srv.store.SetDriverStatus(id, status)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, d)
}

func (srv *Server) handleDriverTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid driver id", err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, srv.store.TripsForDriver(id))
}

// ----- trips -----

func (srv *Server) handleStartTrip(w http.ResponseWriter, r *http.Request) {
	srv.tripAction(w, r, srv.store.StartTrip)
}

func (srv *Server) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	srv.tripAction(w, r, srv.store.CompleteTrip)
}

func (srv *Server) tripAction(w http.ResponseWriter, r *http.Request, action func(int64) (fleet.Trip, error)) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid trip id", err)
		return
	}
	t, err := action(id)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.logger.Info(ctx, "trip_updated", "Trip status changed", map[string]any{"trip_id": t.ID, "status": t.Status})
	if v, err := srv.store.Vehicle(t.VehicleID); err == nil {
		srv.broadcast(ctx, v)
	}
	srv.jsonResponse(ctx, w, http.StatusOK, t)
}

// ----- vehicles -----

func (srv *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	srv.jsonResponse(r.Context(), w, http.StatusOK, srv.store.Vehicles())
}

func (srv *Server) handleAvailableVehicles(w http.ResponseWriter, r *http.Request) {
	out := srv.store.AvailableVehicles()
	if out == nil {
		out = []fleet.Vehicle{}
	}
	srv.jsonResponse(r.Context(), w, http.StatusOK, out)
}

func (srv *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle id", err)
		return
	}
	v, err := srv.store.Vehicle(id)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.jsonResponse(ctx, w, http.StatusOK, v)
}

func (srv *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in fleet.VehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	in.Status = fleet.VehicleStatus(strings.ToUpper(string(in.Status)))
	v, err := srv.store.CreateVehicle(in)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.logger.Info(ctx, "vehicle_created", "Vehicle created", map[string]any{"vehicle_id": v.ID, "plate": v.Plate})
	srv.jsonResponse(ctx, w, http.StatusOK, v)
}

func (srv *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle id", err)
		return
	}
	var in fleet.VehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	in.Status = fleet.VehicleStatus(strings.ToUpper(string(in.Status)))
	v, err := srv.store.UpdateVehicle(id, in)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.broadcast(ctx, v)
	srv.jsonResponse(ctx, w, http.StatusOK, v)
}

func (srv *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle id", err)
		return
	}
	if err := srv.store.DeleteVehicle(id); err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.logger.Info(ctx, "vehicle_deleted", "Vehicle deleted", map[string]any{"vehicle_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handleVehicleLocation answers 200 with an empty body, like the real backend.
func (srv *Server) handleVehicleLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle id", err)
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		srv.httpError(ctx, w, http.StatusBadRequest, "lat and lng query parameters are required", nil)
		return
	}
	v, err := srv.store.SetLocation(id, lat, lng)
	if err != nil {
		srv.storeError(ctx, w, err)
		return
	}
	srv.broadcast(srv.logger.WithVehicleID(ctx, v.ID), v)
	w.WriteHeader(http.StatusOK)
}
