package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/websocket"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// HealthText is the body of GET /api/auth/health.
const HealthText = "Smart Fleet Backend is running!"

// Server is an in-memory stand-in for the fleet backend.
type Server struct {
	store  *Store
	auth   *jwt.Manager
	broker *websocket.Broker
	logger *logger.Logger
}

func NewServer(store *Store, auth *jwt.Manager, broker *websocket.Broker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{store: store, auth: auth, broker: broker, logger: log}
}

// Router mounts every REST endpoint and the STOMP endpoints.
func (srv *Server) Router() *mux.Router {
	r := mux.NewRouter()
	authed := jwt.AuthMiddlewareFunc(srv.auth)
	admin := jwt.AuthMiddlewareFunc(srv.auth, fleet.RoleAdmin)
	driver := jwt.AuthMiddlewareFunc(srv.auth, fleet.RoleDriver)
	staff := jwt.AuthMiddlewareFunc(srv.auth, fleet.RoleAdmin, fleet.RoleDriver)

	// auth
	r.HandleFunc(contracts.PathAuthLogin, srv.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(contracts.PathAuthRegister, srv.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(contracts.PathAuthHealth, srv.handleHealth).Methods(http.MethodGet)

	// drivers
	r.HandleFunc(contracts.PathDrivers, admin(srv.handleListDrivers)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathDriverMe, driver(srv.handleDriverMe)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathDrivers+"/{id:[0-9]+}", staff(srv.handleGetDriver)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathDrivers+"/{id:[0-9]+}", staff(srv.handleUpdateDriver)).Methods(http.MethodPut)
	r.HandleFunc(contracts.PathDrivers+"/{id:[0-9]+}/status", staff(srv.handleDriverStatus)).Methods(http.MethodPut)
	r.HandleFunc(contracts.PathDrivers+"/{id:[0-9]+}/trips", staff(srv.handleDriverTrips)).Methods(http.MethodGet)

	// trips
	r.HandleFunc(contracts.PathTrips+"/driver/{id:[0-9]+}", staff(srv.handleDriverTrips)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathTrips+"/{id:[0-9]+}/start", staff(srv.handleStartTrip)).Methods(http.MethodPost)
	r.HandleFunc(contracts.PathTrips+"/{id:[0-9]+}/complete", staff(srv.handleCompleteTrip)).Methods(http.MethodPost)

	// vehicles
	r.HandleFunc(contracts.PathVehicles, authed(srv.handleListVehicles)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathVehiclesAvailable, authed(srv.handleAvailableVehicles)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathVehicles, admin(srv.handleCreateVehicle)).Methods(http.MethodPost)
	r.HandleFunc(contracts.PathVehicles+"/{id:[0-9]+}", authed(srv.handleGetVehicle)).Methods(http.MethodGet)
	r.HandleFunc(contracts.PathVehicles+"/{id:[0-9]+}", staff(srv.handleUpdateVehicle)).Methods(http.MethodPut)
	r.HandleFunc(contracts.PathVehicles+"/{id:[0-9]+}", admin(srv.handleDeleteVehicle)).Methods(http.MethodDelete)
	r.HandleFunc(contracts.PathVehicles+"/{id:[0-9]+}/location", authed(srv.handleVehicleLocation)).Methods(http.MethodPut)

	// push channel: the SockJS base path and its raw websocket transport
	r.HandleFunc(contracts.PathWS, srv.broker.Handle)
	r.HandleFunc(contracts.PathWSWebsocket, srv.broker.Handle)

	r.Use(srv.requestLog)
	return r
}

// broadcast pushes a vehicle snapshot to live subscribers.
func (srv *Server) broadcast(ctx context.Context, v fleet.Vehicle) {
	n, err := srv.broker.PublishJSON(contracts.TopicVehicles, v)
	if err != nil {
		srv.logger.Error(ctx, "broadcast_failed", "Failed to encode vehicle update", err, nil)
		return
	}
	srv.logger.Debug(ctx, "vehicle_broadcast", "Vehicle update pushed", map[string]any{"vehicle_id": v.ID, "subscribers": n})
}

// ----- general helpers -----

func (srv *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := srv.withReqID(r.Context(), r)
		srv.logger.Debug(ctx, "http_request", r.Method+" "+r.URL.Path, nil)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (srv *Server) withReqID(ctx context.Context, r *http.Request) context.Context {
	if logger.RequestID(ctx) != "" {
		return ctx
	}
	reqID := r.Header.Get(contracts.HeaderRequestID)
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return srv.logger.WithRequestID(ctx, reqID)
}

// jsonResponse encodes data and writes it with status.
func (srv *Server) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			srv.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (srv *Server) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	if err == nil {
		err = errors.New(msg)
	}
	srv.logger.Error(ctx, action, msg, err, nil)
	srv.jsonResponse(ctx, w, status, contracts.ErrorResponse{Error: http.StatusText(status), Message: msg})
}

// storeError maps store errors onto HTTP statuses.
func (srv *Server) storeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		srv.httpError(ctx, w, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ErrInvalidCredentials):
		srv.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrVehicleTaken), errors.Is(err, ErrTripState):
		srv.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, fleet.ErrInvalidDriverStatus), errors.Is(err, fleet.ErrInvalidVehicleStatus),
		errors.Is(err, fleet.ErrInvalidLatitude), errors.Is(err, fleet.ErrInvalidLongitude),
		errors.Is(err, fleet.ErrPlateRequired), errors.Is(err, fleet.ErrVehicleNotAssigned):
		srv.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		srv.httpError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// callerUserID is the numeric subject of the request's token.
func callerUserID(r *http.Request) (int64, bool) {
	claims := jwt.RequireClaims(r)
	if claims == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	return id, err == nil
}

// ownsDriver reports whether the caller may act on driver id: admins on
// anyone, drivers only on themselves.
func (srv *Server) ownsDriver(r *http.Request, id int64) bool {
	claims := jwt.RequireClaims(r)
	if claims == nil {
		return false
	}
	if claims.Role.IsAdmin() {
		return true
	}
	uid, ok := callerUserID(r)
	if !ok {
		return false
	}
	d, err := srv.store.DriverByUserID(uid)
	return err == nil && d.ID == id
}
