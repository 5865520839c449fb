package booking

import (
	"fmt"
	"time"
)

// BookingType is the unit granularity a booking is priced in.
type BookingType string

const (
	TypeHourly  BookingType = "hourly"
	TypeDaily   BookingType = "daily"
	TypeWeekly  BookingType = "weekly"
	TypeMonthly BookingType = "monthly"
)

// unitLengths maps each booking type to the length of one booking unit.
// Monthly uses a fixed 30-day approximation, not calendar months.
var unitLengths = map[BookingType]time.Duration{
	TypeHourly:  time.Hour,
	TypeDaily:   24 * time.Hour,
	TypeWeekly:  7 * 24 * time.Hour,
	TypeMonthly: 30 * 24 * time.Hour,
}

// IsValid returns true if the booking type is recognized.
func (t BookingType) IsValid() bool {
	_, exists := unitLengths[t]
	return exists
}

// UnitLength returns the duration of one booking unit.
func (t BookingType) UnitLength() time.Duration {
	return unitLengths[t]
}

// String returns the string representation of the booking type.
func (t BookingType) String() string {
	return string(t)
}

// ParseBookingType converts a string to a BookingType, returning an error if invalid.
func ParseBookingType(s string) (BookingType, error) {
	t := BookingType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid booking type: %s", s)
	}
	return t, nil
}
