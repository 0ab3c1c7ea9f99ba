package tripdata

import (
	"errors"
)

// Limits on the length of a generated trip.
const (
	MinDays = 1
	MaxDays = 5
)

var (
	ErrDays      = errors.New("number of days should be between 1 and 5")
	ErrLocation  = errors.New("location is required")
	ErrBudget    = errors.New("budget is required")
	ErrTraveller = errors.New("traveller details are required")
)

// Location is the destination picked by the user.
type Location struct {
	Label   string `json:"label"`
	PlaceID string `json:"placeId,omitempty"`
}

// Selection holds the preferences a trip is generated from.
type Selection struct {
	Location  Location `json:"location"`
	Days      int      `json:"noOfDays"`
	Budget    string   `json:"budget"`
	Traveller string   `json:"traveller"`
	IsPublic  bool     `json:"isPublic"`
}

// Validate returns the first problem found with the selection, checking the
// number of days, then the location, budget and traveller.
func (s Selection) Validate() error {
	if s.Days < MinDays || s.Days > MaxDays {
		return ErrDays
	}
	if s.Location.Label == "" {
		return ErrLocation
	}
	if s.Budget == "" {
		return ErrBudget
	}
	if s.Traveller == "" {
		return ErrTraveller
	}
	return nil
}
