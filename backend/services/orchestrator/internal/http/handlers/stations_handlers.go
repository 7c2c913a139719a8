package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

// StationService is the directory logic behind the station endpoints.
type StationService interface {
	List(ctx context.Context, filter service.StationFilter) ([]models.StationView, error)
	Get(ctx context.Context, id int64) (*models.StationView, error)
	Insights(ctx context.Context, id int64) (*models.StationInsights, error)
	Availability(ctx context.Context, id int64) (*models.StationAvailability, error)
}

// StationsHandlers serves /api/stations.
type StationsHandlers struct {
	stations StationService
	logger   *zap.Logger
}

// NewStationsHandlers returns handler.
func NewStationsHandlers(stations StationService, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{stations: stations, logger: logger}
}

// List handles GET /api/stations.
func (h *StationsHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStationFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, h.logger, err, "Invalid query")
		return
	}

	views, err := h.stations.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch stations")
		return
	}
	writeSuccess(w, http.StatusOK, views, "")
}

// Get handles GET /api/stations/{id}.
func (h *StationsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid station ID")
		return
	}

	view, err := h.stations.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch station")
		return
	}
	writeSuccess(w, http.StatusOK, view, "")
}

// Insights handles GET /api/stations/{id}/insights.
func (h *StationsHandlers) Insights(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid station ID")
		return
	}

	insights, err := h.stations.Insights(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to analyse station")
		return
	}
	writeSuccess(w, http.StatusOK, insights, "")
}

// Availability handles GET /api/bookings/availability/{stationId}.
func (h *StationsHandlers) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "stationId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid station ID")
		return
	}

	availability, err := h.stations.Availability(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to check availability")
		return
	}
	writeSuccess(w, http.StatusOK, availability, "")
}

func parseStationFilter(q url.Values) (service.StationFilter, error) {
	filter := service.StationFilter{
		Status: strings.TrimSpace(q.Get("status")),
		Power:  strings.TrimSpace(q.Get("power")),
		City:   strings.TrimSpace(q.Get("city")),
		Sort:   strings.TrimSpace(q.Get("sort")),
	}

	var err error
	if filter.MinPrice, err = optionalFloat(q, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = optionalFloat(q, "max_price"); err != nil {
		return filter, err
	}
	if filter.Lat, err = optionalFloat(q, "lat"); err != nil {
		return filter, err
	}
	if filter.Lng, err = optionalFloat(q, "lng"); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, service.Validation("Invalid " + key)
	}
	return &v, nil
}
