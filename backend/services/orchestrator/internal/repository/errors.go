package repository

import "errors"

var (
	// ErrUserNotFound represents missing user rows.
	ErrUserNotFound = errors.New("user not found")
	// ErrStationNotFound represents missing station rows.
	ErrStationNotFound = errors.New("station not found")
	// ErrVehicleNotFound is returned when a vehicle does not exist or belongs to another user.
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrVehicleInUse is returned when an active booking references the vehicle.
	ErrVehicleInUse = errors.New("vehicle has active bookings")
	// ErrBookingNotFound represents missing booking rows.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusChanged is returned when a booking left the expected status concurrently.
	ErrStatusChanged = errors.New("booking status changed")
	// ErrTokenTaken is returned when a generated booking token already exists.
	ErrTokenTaken = errors.New("booking token already taken")
	// ErrNoUtilization is returned when no utilization sample matches.
	ErrNoUtilization = errors.New("no utilization sample")
)
