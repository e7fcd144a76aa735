package validator

import (
	"testing"
	"time"

	"fleetbook/pkg/clock"
	"fleetbook/pkg/logger"
	"fleetbook/pkg/model"
)

// Validation runs against a frozen clock so the "not earlier than yesterday"
// rule is deterministic.
var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)

func newTestValidator() *BookingValidator {
	log := logger.New(logger.Config{Level: "error", Service: "bookings-test"})
	return NewBookingValidator(clock.Fixed(testNow), log)
}

func fieldMessages(errs ValidationErrors) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	return errs.Fields()
}

func TestResolveTimedBooking(t *testing.T) {
	v := newTestValidator()

	rng, errs := v.Resolve(&model.BookingInput{
		StartDate: "2026-03-12",
		EndDate:   "2026-03-12",
		StartTime: "10:00",
		EndTime:   "12:00",
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	wantStart := time.Date(2026, 3, 12, 10, 0, 0, 0, time.Local)
	wantEnd := time.Date(2026, 3, 12, 12, 0, 0, 0, time.Local)
	if !rng.Start.Equal(wantStart) || !rng.End.Equal(wantEnd) {
		t.Errorf("range = %v–%v, want %v–%v", rng.Start, rng.End, wantStart, wantEnd)
	}
}

func TestResolveWholeDayBooking(t *testing.T) {
	v := newTestValidator()

	rng, errs := v.Resolve(&model.BookingInput{
		StartDate: "2026-03-12",
		EndDate:   "2026-03-13",
		WholeDay:  true,
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	wantStart := time.Date(2026, 3, 12, 0, 0, 0, 0, time.Local)
	wantEnd := time.Date(2026, 3, 13, 23, 59, 59, 0, time.Local)
	if !rng.Start.Equal(wantStart) || !rng.End.Equal(wantEnd) {
		t.Errorf("range = %v–%v, want %v–%v", rng.Start, rng.End, wantStart, wantEnd)
	}
}

func TestResolveWholeDayIgnoresSubmittedTimes(t *testing.T) {
	v := newTestValidator()

	rng, errs := v.Resolve(&model.BookingInput{
		StartDate: "2026-03-12",
		EndDate:   "2026-03-12",
		StartTime: "not-a-time",
		EndTime:   "25:99",
		WholeDay:  true,
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if rng.Start.Hour() != 0 || rng.End.Hour() != 23 {
		t.Errorf("unexpected range: %v–%v", rng.Start, rng.End)
	}
}

func TestResolveStartDateBoundary(t *testing.T) {
	v := newTestValidator()

	// Yesterday is the earliest allowed start.
	_, errs := v.Resolve(&model.BookingInput{
		StartDate: "2026-03-09",
		EndDate:   "2026-03-09",
		WholeDay:  true,
	})
	if len(errs) > 0 {
		t.Fatalf("yesterday should be allowed, got: %v", errs)
	}

	_, errs = v.Resolve(&model.BookingInput{
		StartDate: "2026-03-08",
		EndDate:   "2026-03-08",
		WholeDay:  true,
	})
	fields := fieldMessages(errs)
	if _, ok := fields["start_date"]; !ok {
		t.Fatalf("expected a start_date error, got: %v", errs)
	}
}

func TestResolveFieldErrors(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name       string
		input      model.BookingInput
		wantFields []string
	}{
		{
			name:       "missing everything",
			input:      model.BookingInput{},
			wantFields: []string{"start_date", "end_date", "start_time", "end_time"},
		},
		{
			name: "malformed dates",
			input: model.BookingInput{
				StartDate: "12-03-2026",
				EndDate:   "next tuesday",
				WholeDay:  true,
			},
			wantFields: []string{"start_date", "end_date"},
		},
		{
			name: "end date before start date",
			input: model.BookingInput{
				StartDate: "2026-03-14",
				EndDate:   "2026-03-12",
				WholeDay:  true,
			},
			wantFields: []string{"end_date"},
		},
		{
			name: "malformed times",
			input: model.BookingInput{
				StartDate: "2026-03-12",
				EndDate:   "2026-03-12",
				StartTime: "9:00",
				EndTime:   "24:00",
			},
			wantFields: []string{"start_time", "end_time"},
		},
		{
			name: "end time before start time on same day",
			input: model.BookingInput{
				StartDate: "2026-03-12",
				EndDate:   "2026-03-12",
				StartTime: "14:00",
				EndTime:   "10:00",
			},
			wantFields: []string{"end_time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := v.Resolve(&tt.input)
			fields := fieldMessages(errs)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("got %d field errors (%v), want %d", len(fields), fields, len(tt.wantFields))
			}
			for _, f := range tt.wantFields {
				if _, ok := fields[f]; !ok {
					t.Errorf("missing expected error on field %q: %v", f, fields)
				}
			}
		})
	}
}

func TestResolveOvernightTimedBooking(t *testing.T) {
	v := newTestValidator()

	// A later end date makes an "inverted" time pair valid.
	rng, errs := v.Resolve(&model.BookingInput{
		StartDate: "2026-03-12",
		EndDate:   "2026-03-13",
		StartTime: "22:00",
		EndTime:   "06:00",
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !rng.End.After(rng.Start) {
		t.Errorf("expected a forward range, got %v–%v", rng.Start, rng.End)
	}
}
