package tripdata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError is returned when generated text is not a usable trip.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse trip data: %s: %s", e.Reason, e.Err)
	}
	return "cannot parse trip data: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses generated text into a Trip. The text may be wrapped in a
// markdown code fence. Two shapes are accepted:
//
//	{"hotels": [...], "itinerary": [...]}
//	[[hotels...], [day plans...]]
//
// and "plans" is accepted in place of "itinerary". A trip with neither hotels
// nor days, or with a hotel or place that has no name, is rejected.
func Parse(raw string) (*Trip, error) {
	data := []byte(stripFence(raw))
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty payload"}
	}

	var trip *Trip
	var err error
	switch data[0] {
	case '{':
		trip, err = parseObject(data)
	case '[':
		trip, err = parseArray(data)
	default:
		return nil, &ParseError{Reason: "payload is not a JSON object or array"}
	}
	if err != nil {
		return nil, err
	}

	if err = trip.check(); err != nil {
		return nil, err
	}
	return trip, nil
}

func parseObject(data []byte) (*Trip, error) {
	var obj struct {
		Hotels    []Hotel   `json:"hotels"`
		Itinerary []DayPlan `json:"itinerary"`
		Plans     []DayPlan `json:"plans"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &ParseError{Reason: "invalid trip object", Err: err}
	}
	trip := &Trip{
		Hotels:    obj.Hotels,
		Itinerary: obj.Itinerary,
	}
	if len(trip.Itinerary) == 0 {
		trip.Itinerary = obj.Plans
	}
	return trip, nil
}

func parseArray(data []byte) (*Trip, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, &ParseError{Reason: "invalid trip array", Err: err}
	}
	if len(parts) == 0 || len(parts) > 2 {
		return nil, &ParseError{Reason: fmt.Sprintf("trip array must have 1 or 2 elements, got %d", len(parts))}
	}

	trip := &Trip{}
	if err := json.Unmarshal(parts[0], &trip.Hotels); err != nil {
		return nil, &ParseError{Reason: "invalid hotels", Err: err}
	}
	if len(parts) == 2 {
		if err := json.Unmarshal(parts[1], &trip.Itinerary); err != nil {
			return nil, &ParseError{Reason: "invalid itinerary", Err: err}
		}
	}
	return trip, nil
}

func (t *Trip) check() error {
	if len(t.Hotels) == 0 && len(t.Itinerary) == 0 {
		return &ParseError{Reason: "no hotels or itinerary"}
	}
	for i, h := range t.Hotels {
		if strings.TrimSpace(h.HotelName) == "" {
			return &ParseError{Reason: fmt.Sprintf("hotel %d has no name", i)}
		}
	}
	for i, day := range t.Itinerary {
		for j, p := range day.Plan {
			if strings.TrimSpace(p.PlaceName) == "" {
				return &ParseError{Reason: fmt.Sprintf("day %d place %d has no name", i, j)}
			}
		}
	}
	return nil
}

// stripFence removes surrounding whitespace and a markdown code fence, such
// as ```json ... ```, if present.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string, e.g. "json".
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
