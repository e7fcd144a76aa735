package model

import (
	"time"

	"fleetbook/pkg/timerange"
)

// Booking is immutable after creation; it only disappears through vehicle or
// group cascade deletion.
type Booking struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	VehicleID string    `json:"vehicle_id" bson:"vehicle_id" validate:"required,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	Start     time.Time `json:"start" bson:"start" validate:"required"`
	End       time.Time `json:"end" bson:"end" validate:"required,gtefield=Start"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty" validate:"omitempty,max=2000"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (b *Booking) Range() timerange.Range {
	return timerange.Range{Start: b.Start, End: b.End}
}

// BookingInput is the raw booking form: dates are YYYY-MM-DD strings, times
// HH:MM. When WholeDay is set the times are ignored.
type BookingInput struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	WholeDay  bool   `json:"whole_day,omitempty"`
	Comment   string `json:"comment,omitempty"`
}
