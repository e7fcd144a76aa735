package service

import (
	"context"

	"fleetbook/internal/bookings/repository"
	"fleetbook/pkg/model"
	"fleetbook/pkg/timerange"
)

// ConflictChecker finds committed bookings on a vehicle that overlap a
// candidate range. It never sees uncommitted concurrent requests; the
// booking service serializes those with the vehicle slot lock.
type ConflictChecker struct {
	repo repository.BookingRepository
}

func NewConflictChecker(repo repository.BookingRepository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// FindConflicts returns the overlapping bookings ordered by start ascending.
// An empty result means the candidate range is free. The repository query
// already applies the open-interval filter; the re-check here keeps the
// overlap semantics in one place and independent of the storage engine.
func (c *ConflictChecker) FindConflicts(ctx context.Context, vehicleID string, candidate timerange.Range) ([]*model.Booking, error) {
	existing, err := c.repo.FindOverlapping(ctx, vehicleID, candidate)
	if err != nil {
		return nil, err
	}

	conflicts := make([]*model.Booking, 0, len(existing))
	for _, b := range existing {
		if candidate.Overlaps(b.Range()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}
