package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"evorchestrator/backend/services/orchestrator/internal/http/handlers"
	"evorchestrator/backend/services/orchestrator/internal/metrics"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	AuthHandlers     *handlers.AuthHandlers
	StationsHandlers *handlers.StationsHandlers
	VehiclesHandlers *handlers.VehiclesHandlers
	BookingsHandlers *handlers.BookingsHandlers
	LiveHandler      http.HandlerFunc
	HealthHandler    http.HandlerFunc
	MetricsHandler   http.Handler
}

// NewRouter wires HTTP routes. authMiddleware guards user endpoints and rateLimit throttles
// credential and booking mutations.
func NewRouter(deps RouterDeps, authMiddleware, rateLimit func(http.Handler) http.Handler) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = handlers.NewNotFoundHandler()
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	router.Use(metrics.InstrumentHandler)

	router.Handle("/health", deps.HealthHandler).Methods(http.MethodGet)
	if deps.MetricsHandler != nil {
		router.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}
	if deps.LiveHandler != nil {
		router.Handle("/ws/stations", deps.LiveHandler).Methods(http.MethodGet)
	}

	authenticated := func(h http.HandlerFunc) http.Handler {
		return chain(h, authMiddleware)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return chain(h, authMiddleware, rateLimit)
	}

	api := router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Handle("/google", chain(http.HandlerFunc(deps.AuthHandlers.Google), rateLimit)).Methods(http.MethodPost)
	auth.Handle("/signup", chain(http.HandlerFunc(deps.AuthHandlers.Signup), rateLimit)).Methods(http.MethodPost)
	auth.Handle("/login", chain(http.HandlerFunc(deps.AuthHandlers.Login), rateLimit)).Methods(http.MethodPost)
	auth.Handle("/me", authenticated(deps.AuthHandlers.Me)).Methods(http.MethodGet)

	stations := api.PathPrefix("/stations").Subrouter()
	stations.HandleFunc("", deps.StationsHandlers.List).Methods(http.MethodGet)
	stations.HandleFunc("/", deps.StationsHandlers.List).Methods(http.MethodGet)
	stations.HandleFunc("/{id}", deps.StationsHandlers.Get).Methods(http.MethodGet)
	stations.HandleFunc("/{id}/insights", deps.StationsHandlers.Insights).Methods(http.MethodGet)

	vehicles := api.PathPrefix("/vehicles").Subrouter()
	vehicles.Handle("", authenticated(deps.VehiclesHandlers.List)).Methods(http.MethodGet)
	vehicles.Handle("", authenticated(deps.VehiclesHandlers.Create)).Methods(http.MethodPost)
	vehicles.Handle("/{id}", authenticated(deps.VehiclesHandlers.Update)).Methods(http.MethodPut)
	vehicles.Handle("/{id}", authenticated(deps.VehiclesHandlers.Delete)).Methods(http.MethodDelete)
	vehicles.Handle("/{id}/primary", authenticated(deps.VehiclesHandlers.SetPrimary)).Methods(http.MethodPut)

	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Handle("/create", limited(deps.BookingsHandlers.Create)).Methods(http.MethodPost)
	bookings.Handle("/cancel/{bookingId}", limited(deps.BookingsHandlers.Cancel)).Methods(http.MethodPut)
	bookings.Handle("/start/{bookingId}", limited(deps.BookingsHandlers.Start)).Methods(http.MethodPost)
	bookings.Handle("/end/{bookingId}", limited(deps.BookingsHandlers.End)).Methods(http.MethodPost)
	bookings.Handle("/user/{userId}", authenticated(deps.BookingsHandlers.ListForUser)).Methods(http.MethodGet)
	bookings.Handle("/all", authenticated(deps.BookingsHandlers.ListAll)).Methods(http.MethodGet)
	bookings.HandleFunc("/availability/{stationId}", deps.StationsHandlers.Availability).Methods(http.MethodGet)

	return router
}

// chain applies middlewares so that the first one runs outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"success":false,"error":"Method not allowed"}` + "\n"))
}
