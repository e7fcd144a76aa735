package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "fleetbook/internal/bookings/errors"
	"fleetbook/internal/bookings/repository"
	"fleetbook/internal/bookings/validator"
	vehicleserrors "fleetbook/internal/vehicles/errors"
	"fleetbook/pkg/config"
	mongotx "fleetbook/pkg/db/mongo"
	apperrors "fleetbook/pkg/errors"
	"fleetbook/pkg/events"
	"fleetbook/pkg/model"
	"fleetbook/pkg/sanitizer"
)

// VehicleFinder is the slice of the vehicles domain the booking service
// needs: existence and group ownership.
type VehicleFinder interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
}

// AdminChecker is the group-admin authorization gate.
type AdminChecker interface {
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
}

type BookingService interface {
	Create(ctx context.Context, userID, vehicleID string, input *model.BookingInput) (*model.Booking, error)
	GetByID(ctx context.Context, userID, id string) (*model.Booking, bool, error)
	ListByVehicle(ctx context.Context, vehicleID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  mongotx.SlotLockRepository
	checker   *ConflictChecker
	validator *validator.BookingValidator
	vehicles  VehicleFinder
	groups    AdminChecker
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo mongotx.SlotLockRepository,
	bookingValidator *validator.BookingValidator,
	vehicles VehicleFinder,
	groups AdminChecker,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		checker:   NewConflictChecker(repo),
		validator: bookingValidator,
		vehicles:  vehicles,
		groups:    groups,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, userID, vehicleID string, input *model.BookingInput) (*model.Booking, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Booking requires an authenticated user")
	}

	vehicle, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) || errors.Is(err, vehicleserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Vehicle", vehicleID)
		}
		return nil, apperrors.Internal("Failed to look up vehicle", err)
	}

	rng, validationErrs := s.validator.Resolve(input)
	if len(validationErrs) > 0 {
		s.cfg.Log.Warn("Booking validation failed",
			"vehicle_id", vehicleID,
			"user_id", userID,
			"error", validationErrs,
		)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"errors": validationErrs.Fields(),
			"input":  input,
		})
	}

	// Serialize check-and-insert per vehicle so two concurrent overlapping
	// requests cannot both pass the conflict check.
	lockID, err := s.acquireVehicleLock(ctx, vehicle.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	booking := &model.Booking{
		VehicleID: vehicle.ID,
		UserID:    userID,
		Start:     rng.Start,
		End:       rng.End,
		Comment:   sanitizer.NormalizeComment(input.Comment),
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflicts, err := s.checker.FindConflicts(sessCtx, vehicle.ID, rng)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if len(conflicts) > 0 {
			return apperrors.Conflict("Booking overlaps with existing bookings").WithDetails(map[string]any{
				"conflicts": conflicts,
				"input":     input,
			})
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"vehicle_id", vehicle.ID,
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type: events.TypeBookingCreated,
		Key:  vehicle.ID,
		Payload: map[string]any{
			"booking_id": booking.ID,
			"vehicle_id": vehicle.ID,
			"user_id":    userID,
			"start":      booking.Start.Format(time.RFC3339),
			"end":        booking.End.Format(time.RFC3339),
		},
	})

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"vehicle_id", vehicle.ID,
		"user_id", userID,
		"start", booking.Start,
		"end", booking.End,
	)
	return booking, nil
}

// GetByID returns the booking and whether userID may manage it: the creator
// may, and so may any admin of the group owning the vehicle.
func (s *bookingService) GetByID(ctx context.Context, userID, id string) (*model.Booking, bool, error) {
	if id == "" {
		return nil, false, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, false, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, false, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, false, apperrors.Internal("Failed to retrieve booking", err)
	}

	canManage, err := s.canManage(ctx, userID, booking)
	if err != nil {
		return nil, false, err
	}

	return booking, canManage, nil
}

func (s *bookingService) canManage(ctx context.Context, userID string, booking *model.Booking) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if booking.UserID == userID {
		return true, nil
	}

	vehicle, err := s.vehicles.FindByID(ctx, booking.VehicleID)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Internal("Failed to look up vehicle", err)
	}

	isAdmin, err := s.groups.IsAdmin(ctx, vehicle.GroupID, userID)
	if err != nil {
		return false, apperrors.Internal("Failed to check group admin", err)
	}
	return isAdmin, nil
}

func (s *bookingService) ListByVehicle(ctx context.Context, vehicleID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if vehicleID == "" {
		return nil, 0, apperrors.InvalidInput("Vehicle ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByVehicle(ctx, vehicleID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "vehicle_id", vehicleID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByVehicle(ctx, vehicleID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "vehicle_id", vehicleID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) acquireVehicleLock(ctx context.Context, vehicleID string) (string, error) {
	lockID := fmt.Sprintf("booking_lock_%s", vehicleID)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This vehicle is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire booking lock", err)
	}

	return lockID, nil
}

func (s *bookingService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event", "type", event.Type, "key", event.Key, "error", err)
	}
}
