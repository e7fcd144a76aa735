package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	vehicleserrors "fleetbook/internal/vehicles/errors"
	"fleetbook/internal/vehicles/repository"
	"fleetbook/internal/vehicles/validator"
	"fleetbook/pkg/config"
	apperrors "fleetbook/pkg/errors"
	"fleetbook/pkg/events"
	"fleetbook/pkg/model"
	"fleetbook/pkg/sanitizer"
)

// AdminChecker is the group-admin authorization gate. It reports a not-found
// error when the group itself does not exist.
type AdminChecker interface {
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
}

// BookingCascader removes every booking of a vehicle when the vehicle is
// deleted. It must be safe to call inside a session context.
type BookingCascader interface {
	DeleteByVehicle(ctx context.Context, vehicleID string) (int64, error)
}

type VehicleService interface {
	Create(ctx context.Context, creatorID string, vehicle *model.Vehicle) error
	GetByID(ctx context.Context, id string) (*model.Vehicle, error)
	ListByGroup(ctx context.Context, groupID string, limit int, offset int64) ([]*model.Vehicle, int64, error)
	Update(ctx context.Context, vehicleID, editorID string, update *model.VehicleUpdate) (*model.Vehicle, error)
	Delete(ctx context.Context, vehicleID, editorID string) error

	// FindByID is the read-only lookup consumed by the bookings domain.
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)

	// DeleteByGroup cascades vehicle and booking deletion when a group is
	// removed. Callers invoke it inside their own transaction.
	DeleteByGroup(ctx context.Context, groupID string) error
}

type vehicleService struct {
	repo      repository.VehicleRepository
	bookings  BookingCascader
	groups    AdminChecker
	validator *validator.VehicleValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewVehicleService(
	repo repository.VehicleRepository,
	bookings BookingCascader,
	groups AdminChecker,
	vehicleValidator *validator.VehicleValidator,
	publisher events.Publisher,
	cfg *config.Config,
) VehicleService {
	return &vehicleService{
		repo:      repo,
		bookings:  bookings,
		groups:    groups,
		validator: vehicleValidator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *vehicleService) Create(ctx context.Context, creatorID string, vehicle *model.Vehicle) error {
	if creatorID == "" {
		return apperrors.Unauthorized("Creating a vehicle requires an authenticated user")
	}

	vehicle.Name = sanitizer.NormalizeName(vehicle.Name)
	vehicle.Description = sanitizer.TrimAndNormalize(vehicle.Description)
	vehicle.LicensePlate = sanitizer.NormalizePlate(vehicle.LicensePlate)

	if err := s.validator.Validate(vehicle); err != nil {
		s.cfg.Log.Warn("Vehicle validation failed", "group_id", vehicle.GroupID, "error", err)
		return apperrors.Validation("Vehicle validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.requireAdmin(ctx, vehicle.GroupID, creatorID); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		s.cfg.Log.Error("Failed to create vehicle", "group_id", vehicle.GroupID, "error", err)
		return apperrors.Internal("Failed to create vehicle", err)
	}

	s.publish(ctx, events.Event{
		Type: events.TypeVehicleCreated,
		Key:  vehicle.GroupID,
		Payload: map[string]any{
			"vehicle_id": vehicle.ID,
			"group_id":   vehicle.GroupID,
			"name":       vehicle.Name,
			"created_by": creatorID,
		},
	})

	s.cfg.Log.Info("Vehicle created successfully",
		"id", vehicle.ID,
		"group_id", vehicle.GroupID,
		"name", vehicle.Name,
	)
	return nil
}

func (s *vehicleService) GetByID(ctx context.Context, id string) (*model.Vehicle, error) {
	return s.findVehicle(ctx, id)
}

// FindByID is an alias used by the bookings domain through the narrow
// VehicleFinder interface.
func (s *vehicleService) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if id == "" {
		return nil, vehicleserrors.ErrInvalidID
	}
	return s.repo.FindByID(ctx, id)
}

func (s *vehicleService) ListByGroup(ctx context.Context, groupID string, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	if groupID == "" {
		return nil, 0, apperrors.InvalidInput("Group ID cannot be empty")
	}

	var count int64
	var vehicles []*model.Vehicle
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByGroup(ctx, groupID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count vehicles", "group_id", groupID, "error", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		vehicles, errFind = s.repo.FindByGroup(ctx, groupID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list vehicles", "group_id", groupID, "error", errFind)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count vehicles", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to list vehicles", errFind)
	}

	return vehicles, count, nil
}

func (s *vehicleService) Update(ctx context.Context, vehicleID, editorID string, update *model.VehicleUpdate) (*model.Vehicle, error) {
	if editorID == "" {
		return nil, apperrors.Unauthorized("Updating a vehicle requires an authenticated user")
	}

	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, apperrors.Validation("Vehicle validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	vehicle, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.requireAdmin(ctx, vehicle.GroupID, editorID); err != nil {
		return nil, err
	}

	applyUpdate(vehicle, update)

	if err := s.validator.Validate(vehicle); err != nil {
		return nil, apperrors.Validation("Vehicle validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Update(ctx, vehicle); err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Vehicle", vehicleID)
		}
		s.cfg.Log.Error("Failed to update vehicle", "id", vehicleID, "error", err)
		return nil, apperrors.Internal("Failed to update vehicle", err)
	}

	s.cfg.Log.Info("Vehicle updated successfully", "id", vehicle.ID, "group_id", vehicle.GroupID)
	return vehicle, nil
}

func (s *vehicleService) Delete(ctx context.Context, vehicleID, editorID string) error {
	if editorID == "" {
		return apperrors.Unauthorized("Deleting a vehicle requires an authenticated user")
	}

	vehicle, err := s.findVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}

	if err := s.requireAdmin(ctx, vehicle.GroupID, editorID); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return s.deleteWithBookings(sessCtx, vehicle)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete vehicle", "id", vehicleID, "error", err)
		return err
	}

	s.publish(ctx, events.Event{
		Type: events.TypeVehicleDeleted,
		Key:  vehicle.GroupID,
		Payload: map[string]any{
			"vehicle_id": vehicle.ID,
			"group_id":   vehicle.GroupID,
			"deleted_by": editorID,
		},
	})

	s.cfg.Log.Info("Vehicle deleted successfully", "id", vehicle.ID, "group_id", vehicle.GroupID)
	return nil
}

// DeleteByGroup removes every vehicle of a group together with its bookings.
// The groups service calls it inside the group-deletion transaction, so no
// new transaction is opened here.
func (s *vehicleService) DeleteByGroup(ctx context.Context, groupID string) error {
	vehicles, err := s.repo.FindByGroup(ctx, groupID, 0, 0)
	if err != nil {
		return apperrors.Internal("Failed to list group vehicles", err)
	}

	for _, vehicle := range vehicles {
		if err := s.deleteWithBookings(ctx, vehicle); err != nil {
			return err
		}
	}
	return nil
}

// --- Helpers ---

func (s *vehicleService) deleteWithBookings(ctx context.Context, vehicle *model.Vehicle) error {
	deleted, err := s.bookings.DeleteByVehicle(ctx, vehicle.ID)
	if err != nil {
		return apperrors.Internal("Failed to delete vehicle bookings", err)
	}
	if deleted > 0 {
		s.cfg.Log.Info("Deleted vehicle bookings", "vehicle_id", vehicle.ID, "count", deleted)
	}

	if err := s.repo.Delete(ctx, vehicle.ID); err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to delete vehicle", err)
	}
	return nil
}

func (s *vehicleService) findVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Vehicle ID cannot be empty")
	}
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Vehicle", id)
		}
		if errors.Is(err, vehicleserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid vehicle ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve vehicle", err)
	}
	return vehicle, nil
}

func (s *vehicleService) requireAdmin(ctx context.Context, groupID, userID string) error {
	isAdmin, err := s.groups.IsAdmin(ctx, groupID, userID)
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Internal("Failed to check group admin", err)
	}
	if !isAdmin {
		return apperrors.Forbidden("Only group admins can manage vehicles")
	}
	return nil
}

func (s *vehicleService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event", "type", event.Type, "key", event.Key, "error", err)
	}
}

func applyUpdate(vehicle *model.Vehicle, update *model.VehicleUpdate) {
	if update.Name != "" {
		vehicle.Name = sanitizer.NormalizeName(update.Name)
	}
	if update.Description != nil {
		vehicle.Description = sanitizer.TrimAndNormalize(*update.Description)
	}
	if update.LicensePlate != "" {
		vehicle.LicensePlate = sanitizer.NormalizePlate(update.LicensePlate)
	}
	if update.ModelYear != nil {
		vehicle.ModelYear = *update.ModelYear
	}
	if update.CurbWeight != nil {
		vehicle.CurbWeight = *update.CurbWeight
	}
	if update.GrossWeight != nil {
		vehicle.GrossWeight = *update.GrossWeight
	}
	if update.Length != nil {
		vehicle.Length = *update.Length
	}
	if update.Width != nil {
		vehicle.Width = *update.Width
	}
}
