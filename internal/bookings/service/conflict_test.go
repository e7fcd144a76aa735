package service

import (
	"context"
	"testing"
	"time"

	"fleetbook/pkg/model"
	"fleetbook/pkg/timerange"
)

func TestFindConflictsFiltersAndKeepsOrder(t *testing.T) {
	early := bookingAt(9, 11)
	late := bookingAt(11, 13)
	touching := bookingAt(12, 14)

	repo := &mockBookingRepo{
		// Repository results are sorted by start; the touching booking
		// simulates a storage-level false positive.
		findOverlappingFn: func(ctx context.Context, vehicleID string, r timerange.Range) ([]*model.Booking, error) {
			return []*model.Booking{early, late, touching}, nil
		},
	}
	checker := NewConflictChecker(repo)

	candidate := timerange.Range{
		Start: time.Date(2026, 3, 12, 10, 0, 0, 0, time.Local),
		End:   time.Date(2026, 3, 12, 12, 0, 0, 0, time.Local),
	}
	conflicts, err := checker.FindConflicts(context.Background(), testVehicleID, candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(conflicts))
	}
	if conflicts[0] != early || conflicts[1] != late {
		t.Error("conflicts must keep the repository's start-ascending order")
	}
}

func TestFindConflictsEmptyWhenFree(t *testing.T) {
	repo := &mockBookingRepo{
		findOverlappingFn: func(ctx context.Context, vehicleID string, r timerange.Range) ([]*model.Booking, error) {
			return nil, nil
		},
	}
	checker := NewConflictChecker(repo)

	candidate := timerange.Range{
		Start: time.Date(2026, 3, 12, 10, 0, 0, 0, time.Local),
		End:   time.Date(2026, 3, 12, 12, 0, 0, 0, time.Local),
	}
	conflicts, err := checker.FindConflicts(context.Background(), testVehicleID, candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", conflicts)
	}
}
