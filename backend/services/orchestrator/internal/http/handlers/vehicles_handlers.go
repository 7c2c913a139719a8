package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/http/middleware"
	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

// VehicleService is the registry logic behind the vehicle endpoints.
type VehicleService interface {
	List(ctx context.Context, userID int64) ([]models.Vehicle, error)
	Create(ctx context.Context, userID int64, in service.VehicleInput) (*models.Vehicle, error)
	Update(ctx context.Context, userID, vehicleID int64, in service.VehicleInput) (*models.Vehicle, error)
	Delete(ctx context.Context, userID, vehicleID int64) error
	SetPrimary(ctx context.Context, userID, vehicleID int64) error
}

// VehiclesHandlers serves /api/vehicles.
type VehiclesHandlers struct {
	vehicles VehicleService
	logger   *zap.Logger
}

// NewVehiclesHandlers returns handler.
func NewVehiclesHandlers(vehicles VehicleService, logger *zap.Logger) *VehiclesHandlers {
	return &VehiclesHandlers{vehicles: vehicles, logger: logger}
}

type vehicleRequest struct {
	Make               *string  `json:"make"`
	Model              *string  `json:"model"`
	Year               *int     `json:"year"`
	Color              *string  `json:"color"`
	LicensePlate       *string  `json:"license_plate"`
	BatteryCapacity    *float64 `json:"battery_capacity"`
	ChargingEfficiency *float64 `json:"charging_efficiency"`
	MaxChargingPower   *float64 `json:"max_charging_power"`
	VehicleRange       *int     `json:"vehicle_range"`
	ChargingCurveType  *string  `json:"charging_curve_type"`
	IsPrimary          *bool    `json:"is_primary"`
}

func (req vehicleRequest) input() service.VehicleInput {
	return service.VehicleInput{
		Make:               req.Make,
		Model:              req.Model,
		Year:               req.Year,
		Color:              req.Color,
		LicensePlate:       req.LicensePlate,
		BatteryCapacity:    req.BatteryCapacity,
		ChargingEfficiency: req.ChargingEfficiency,
		MaxChargingPower:   req.MaxChargingPower,
		VehicleRange:       req.VehicleRange,
		ChargingCurveType:  req.ChargingCurveType,
		IsPrimary:          req.IsPrimary,
	}
}

// List handles GET /api/vehicles.
func (h *VehiclesHandlers) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	vehicles, err := h.vehicles.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch vehicles")
		return
	}
	writeSuccess(w, http.StatusOK, vehicles, "")
}

// Create handles POST /api/vehicles.
func (h *VehiclesHandlers) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req vehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	vehicle, err := h.vehicles.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create vehicle")
		return
	}
	writeSuccess(w, http.StatusCreated, vehicle, "Vehicle created successfully")
}

// Update handles PUT /api/vehicles/{id}.
func (h *VehiclesHandlers) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}
	var req vehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	vehicle, err := h.vehicles.Update(r.Context(), user.ID, id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update vehicle")
		return
	}
	writeSuccess(w, http.StatusOK, vehicle, "Vehicle updated successfully")
}

// Delete handles DELETE /api/vehicles/{id}.
func (h *VehiclesHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	if err := h.vehicles.Delete(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete vehicle")
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Vehicle deleted successfully")
}

// SetPrimary handles PUT /api/vehicles/{id}/primary.
func (h *VehiclesHandlers) SetPrimary(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	if err := h.vehicles.SetPrimary(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to update primary vehicle")
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Primary vehicle updated")
}

func (h *VehiclesHandlers) user(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required. Please login.")
	}
	return user, ok
}
