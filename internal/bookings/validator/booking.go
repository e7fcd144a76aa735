package validator

import (
	"fmt"
	"strings"
	"time"

	"fleetbook/pkg/clock"
	"fleetbook/pkg/logger"
	"fleetbook/pkg/model"
	"fleetbook/pkg/timerange"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields flattens the errors into a field→message map for API responses.
func (v ValidationErrors) Fields() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		if _, taken := fields[err.Field]; !taken {
			fields[err.Field] = err.Message
		}
	}
	return fields
}

// slot is the booking-time input decided once at the boundary: either the
// whole-day variant or an explicit timed variant. Branching on the raw
// whole-day flag stops here.
type slot interface {
	resolve(startDate, endDate time.Time) (timerange.Range, ValidationErrors)
}

type wholeDaySlot struct{}

func (wholeDaySlot) resolve(startDate, endDate time.Time) (timerange.Range, ValidationErrors) {
	return timerange.WholeDay(startDate, endDate), nil
}

type timedSlot struct {
	startHour, startMinute int
	endHour, endMinute     int
}

func (s timedSlot) resolve(startDate, endDate time.Time) (timerange.Range, ValidationErrors) {
	start := timerange.At(startDate, s.startHour, s.startMinute)
	end := timerange.At(endDate, s.endHour, s.endMinute)
	r, err := timerange.New(start, end)
	if err != nil {
		// Dates already validated as ordered, so this is the same-day case
		// where the end time precedes the start time.
		return timerange.Range{}, ValidationErrors{
			{Field: "end_time", Message: "end time must not be before start time"},
		}
	}
	return r, nil
}

type BookingValidator struct {
	clock  clock.Clock
	logger *logger.Logger
}

func NewBookingValidator(clk clock.Clock, log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		clock:  clk,
		logger: log,
	}
}

// Resolve validates the raw booking input and, when it is fully valid,
// produces the booking's time range. Independent fields are checked in one
// pass and all failures are reported together; per field, the first failing
// rule wins.
func (v *BookingValidator) Resolve(input *model.BookingInput) (timerange.Range, ValidationErrors) {
	var errs ValidationErrors

	startDate, err := v.validateStartDate(input.StartDate)
	if err != nil {
		errs = append(errs, *err)
	}

	endDate, err := v.validateEndDate(input.EndDate, startDate)
	if err != nil {
		errs = append(errs, *err)
	}

	bookingSlot, slotErrs := v.validateTimes(input)
	errs = append(errs, slotErrs...)

	if len(errs) > 0 {
		return timerange.Range{}, errs
	}

	r, resolveErrs := bookingSlot.resolve(startDate, endDate)
	if len(resolveErrs) > 0 {
		return timerange.Range{}, resolveErrs
	}
	return r, nil
}

func (v *BookingValidator) validateStartDate(raw string) (time.Time, *ValidationError) {
	if raw == "" {
		return time.Time{}, &ValidationError{Field: "start_date", Message: "start date is required"}
	}
	date, err := timerange.ParseDate(raw, time.Local)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "start_date", Message: "start date must be in YYYY-MM-DD format"}
	}

	// Bookings may start yesterday at the earliest.
	now := v.clock.Now()
	earliest := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, -1)
	if date.Before(earliest) {
		return time.Time{}, &ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("start date must not be earlier than %s", earliest.Format("2006-01-02")),
		}
	}
	return date, nil
}

func (v *BookingValidator) validateEndDate(raw string, startDate time.Time) (time.Time, *ValidationError) {
	if raw == "" {
		return time.Time{}, &ValidationError{Field: "end_date", Message: "end date is required"}
	}
	date, err := timerange.ParseDate(raw, time.Local)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "end_date", Message: "end date must be in YYYY-MM-DD format"}
	}
	if !startDate.IsZero() && date.Before(startDate) {
		return time.Time{}, &ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	return date, nil
}

func (v *BookingValidator) validateTimes(input *model.BookingInput) (slot, ValidationErrors) {
	if input.WholeDay {
		// Whole-day bookings ignore any submitted times.
		return wholeDaySlot{}, nil
	}

	var errs ValidationErrors
	var s timedSlot

	switch {
	case input.StartTime == "":
		errs = append(errs, ValidationError{Field: "start_time", Message: "start time is required"})
	default:
		h, m, err := timerange.ParseTimeOfDay(input.StartTime)
		if err != nil {
			errs = append(errs, ValidationError{Field: "start_time", Message: "start time must be in HH:MM format"})
		} else {
			s.startHour, s.startMinute = h, m
		}
	}

	switch {
	case input.EndTime == "":
		errs = append(errs, ValidationError{Field: "end_time", Message: "end time is required"})
	default:
		h, m, err := timerange.ParseTimeOfDay(input.EndTime)
		if err != nil {
			errs = append(errs, ValidationError{Field: "end_time", Message: "end time must be in HH:MM format"})
		} else {
			s.endHour, s.endMinute = h, m
		}
	}

	return s, errs
}
