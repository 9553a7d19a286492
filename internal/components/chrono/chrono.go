package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
//
// note: fault injection point
type API interface {
	// Now returns the current time in Location().
	Now() time.Time
	Location() *time.Location
}

// damadam is used from Pakistan, every timestamp written to the spreadsheet is read by
// people in PKT (UTC+5, no daylight saving).
const locationName = "Asia/Karachi"

var pkt = time.FixedZone("PKT", 5*60*60)

// PKT returns the location all sheet timestamps are rendered in. It falls back to a fixed
// UTC+5 zone when the tz database is unavailable (scratch containers).
func PKT() *time.Location {
	loc, err := time.LoadLocation(locationName)
	if err != nil {
		return pkt
	}
	return loc
}

// StandardImpl is the standard implementation of API using the system clock.
type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() StandardImpl {
	return StandardImpl{location: PKT()}
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}
