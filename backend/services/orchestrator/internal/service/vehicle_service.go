package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

// Defaults applied to vehicles registered without charging characteristics.
const (
	DefaultChargingEfficiency = 0.90
	DefaultMaxChargingPower   = 50
	DefaultVehicleRange       = 400
	DefaultChargingCurve      = "standard"
)

const (
	msgVehicleRequired = "Make, model, year, and battery capacity are required"
	msgVehicleNotFound = "Vehicle not found or does not belong to user"
	msgVehicleInUse    = "Cannot delete vehicle with active bookings"
)

// VehicleRepository defines storage contract used by the registry.
type VehicleRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Vehicle, error)
	GetForUser(ctx context.Context, id, userID int64) (*models.Vehicle, error)
	Create(ctx context.Context, v *models.Vehicle) error
	Update(ctx context.Context, userID, vehicleID int64, apply func(*models.Vehicle) error) (*models.Vehicle, error)
	Delete(ctx context.Context, userID, vehicleID int64) error
	SetPrimary(ctx context.Context, userID, vehicleID int64) error
}

// VehicleInput carries vehicle fields; nil pointers leave the current value in place.
type VehicleInput struct {
	Make               *string
	Model              *string
	Year               *int
	Color              *string
	LicensePlate       *string
	BatteryCapacity    *float64
	ChargingEfficiency *float64
	MaxChargingPower   *float64
	VehicleRange       *int
	ChargingCurveType  *string
	IsPrimary          *bool
}

// VehicleService manages users' vehicles.
type VehicleService struct {
	repo   VehicleRepository
	logger *zap.Logger
}

// NewVehicleService builds VehicleService.
func NewVehicleService(repo VehicleRepository, logger *zap.Logger) *VehicleService {
	return &VehicleService{repo: repo, logger: logger}
}

// List returns the user's vehicles, primary first.
func (s *VehicleService) List(ctx context.Context, userID int64) ([]models.Vehicle, error) {
	vehicles, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal("Failed to fetch vehicles", err)
	}
	return vehicles, nil
}

// Create registers a vehicle for userID.
func (s *VehicleService) Create(ctx context.Context, userID int64, in VehicleInput) (*models.Vehicle, error) {
	if blank(in.Make) || blank(in.Model) || in.Year == nil || in.BatteryCapacity == nil {
		return nil, Validation(msgVehicleRequired)
	}

	vehicle := &models.Vehicle{
		UserID:             userID,
		ChargingEfficiency: DefaultChargingEfficiency,
		MaxChargingPower:   DefaultMaxChargingPower,
		VehicleRange:       DefaultVehicleRange,
		ChargingCurveType:  DefaultChargingCurve,
	}
	applyVehicleInput(vehicle, in)
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, Unauthenticated(msgUserGone)
		}
		return nil, Internal("Failed to create vehicle", err)
	}

	s.logger.Info("vehicle created",
		zap.Int64("user_id", userID),
		zap.Int64("vehicle_id", vehicle.ID),
		zap.Bool("primary", vehicle.IsPrimary),
	)
	return vehicle, nil
}

// Update changes the given fields of a vehicle owned by userID. The current row is read
// inside the write so a concurrent primary switch is seen before the input is applied.
func (s *VehicleService) Update(ctx context.Context, userID, vehicleID int64, in VehicleInput) (*models.Vehicle, error) {
	vehicle, err := s.repo.Update(ctx, userID, vehicleID, func(v *models.Vehicle) error {
		applyVehicleInput(v, in)
		return validateVehicle(v)
	})
	if err != nil {
		switch {
		case KindOf(err) == KindValidation:
			return nil, err
		case errors.Is(err, repository.ErrVehicleNotFound):
			return nil, NotFound(msgVehicleNotFound, err)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, Unauthenticated(msgUserGone)
		}
		return nil, Internal("Failed to update vehicle", err)
	}
	return vehicle, nil
}

// Delete removes a vehicle owned by userID.
func (s *VehicleService) Delete(ctx context.Context, userID, vehicleID int64) error {
	if err := s.repo.Delete(ctx, userID, vehicleID); err != nil {
		switch {
		case errors.Is(err, repository.ErrVehicleNotFound):
			return NotFound(msgVehicleNotFound, err)
		case errors.Is(err, repository.ErrVehicleInUse):
			return Conflict(msgVehicleInUse, err)
		case errors.Is(err, repository.ErrUserNotFound):
			return Unauthenticated(msgUserGone)
		}
		return Internal("Failed to delete vehicle", err)
	}
	s.logger.Info("vehicle deleted", zap.Int64("user_id", userID), zap.Int64("vehicle_id", vehicleID))
	return nil
}

// SetPrimary makes vehicleID the user's only primary vehicle.
func (s *VehicleService) SetPrimary(ctx context.Context, userID, vehicleID int64) error {
	if err := s.repo.SetPrimary(ctx, userID, vehicleID); err != nil {
		switch {
		case errors.Is(err, repository.ErrVehicleNotFound):
			return NotFound(msgVehicleNotFound, err)
		case errors.Is(err, repository.ErrUserNotFound):
			return Unauthenticated(msgUserGone)
		}
		return Internal("Failed to update primary vehicle", err)
	}
	return nil
}

func applyVehicleInput(v *models.Vehicle, in VehicleInput) {
	if in.Make != nil {
		v.Make = strings.TrimSpace(*in.Make)
	}
	if in.Model != nil {
		v.Model = strings.TrimSpace(*in.Model)
	}
	if in.Year != nil {
		v.Year = *in.Year
	}
	if in.Color != nil {
		v.Color = optionalString(*in.Color)
	}
	if in.LicensePlate != nil {
		v.LicensePlate = optionalString(*in.LicensePlate)
	}
	if in.BatteryCapacity != nil {
		v.BatteryCapacity = *in.BatteryCapacity
	}
	if in.ChargingEfficiency != nil {
		v.ChargingEfficiency = *in.ChargingEfficiency
	}
	if in.MaxChargingPower != nil {
		v.MaxChargingPower = *in.MaxChargingPower
	}
	if in.VehicleRange != nil {
		v.VehicleRange = *in.VehicleRange
	}
	if in.ChargingCurveType != nil && strings.TrimSpace(*in.ChargingCurveType) != "" {
		v.ChargingCurveType = strings.TrimSpace(*in.ChargingCurveType)
	}
	if in.IsPrimary != nil {
		v.IsPrimary = *in.IsPrimary
	}
}

func validateVehicle(v *models.Vehicle) error {
	switch {
	case v.Make == "" || v.Model == "" || v.Year <= 0 || v.BatteryCapacity <= 0:
		return Validation(msgVehicleRequired)
	case v.ChargingEfficiency <= 0 || v.ChargingEfficiency > 1:
		return Validation("Charging efficiency must be between 0 and 1")
	case v.MaxChargingPower <= 0:
		return Validation("Max charging power must be positive")
	case v.VehicleRange <= 0:
		return Validation("Vehicle range must be positive")
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
