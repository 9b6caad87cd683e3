package contracts

// REST paths
const (
	PathAuthLogin    = "/api/auth/login"
	PathAuthRegister = "/api/auth/register"
	PathAuthHealth   = "/api/auth/health"

	PathDrivers  = "/api/drivers"
	PathDriverMe = "/api/drivers/me"

	PathVehicles          = "/api/vehicles"
	PathVehiclesAvailable = "/api/vehicles/available"

	PathTrips = "/api/trips"
)

// Push channel
const (
	TopicVehicles   = "/topic/vehicles"
	PathWS          = "/ws"
	PathWSWebsocket = "/ws/websocket" // raw websocket transport of the SockJS endpoint
)

// Exchanges
const (
	ExchangeVehicleFanout = "fleet_vehicles"
)

// Queues
const (
	QueueVehiclesConsole = "fleet_vehicles_console"
)

// Headers
const (
	HeaderRequestID = "X-Request-ID"
)

// Session store keys
const (
	SessionKeyToken = "token"
	SessionKeyUser  = "user"
)
