// Package tripdata defines generated trip data and parses it from the text
// returned by the itinerary generator.
package tripdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// USDToINR is the exchange rate used to show prices in rupees.
const USDToINR = 75

// Text is a string that also decodes from a JSON number or boolean. The
// generator is not consistent about quoting prices, ratings and day numbers.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("cannot decode %s into text", data)
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Hotel is a recommended place to stay.
type Hotel struct {
	HotelName      string          `json:"HotelName"`
	HotelAddress   string          `json:"HotelAddress,omitempty"`
	Price          Text            `json:"Price,omitempty"`
	HotelImageURL  string          `json:"HotelImageUrl,omitempty"`
	GeoCoordinates json.RawMessage `json:"GeoCoordinates,omitempty"`
	Rating         Text            `json:"Rating,omitempty"`
	Description    string          `json:"Description,omitempty"`
	PlaceID        string          `json:"placeId,omitempty"`
}

// Place is a place to visit on a day of the itinerary.
type Place struct {
	PlaceName      string          `json:"PlaceName"`
	PlaceDetails   string          `json:"PlaceDetails,omitempty"`
	PlaceImageURL  string          `json:"PlaceImageUrl,omitempty"`
	GeoCoordinates json.RawMessage `json:"GeoCoordinates,omitempty"`
	TicketPricing  Text            `json:"TicketPricing,omitempty"`
	TimeTravel     string          `json:"TimeTravel,omitempty"`
	Time           string          `json:"Time,omitempty"`
	Rating         Text            `json:"Rating,omitempty"`
	PlaceID        string          `json:"placeId,omitempty"`
}

// DayPlan is one day of the itinerary.
type DayPlan struct {
	Day             Text    `json:"Day"`
	BestTimeToVisit string  `json:"BestTimeToVisit,omitempty"`
	Plan            []Place `json:"plan"`
}

// Trip is a generated trip.
type Trip struct {
	Hotels    []Hotel   `json:"hotels"`
	Itinerary []DayPlan `json:"itinerary"`
}

// PlaceKeys returns the distinct non-empty place keys of the trip, hotels
// first, in order of appearance.
func (t *Trip) PlaceKeys() []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for _, h := range t.Hotels {
		add(h.PlaceID)
	}
	for _, day := range t.Itinerary {
		for _, p := range day.Plan {
			add(p.PlaceID)
		}
	}
	return keys
}

// ConvertToINR converts a US dollar price such as "$120" or "120 USD" to a
// rupee amount such as "₹9000". Anything that is not a digit or a decimal
// point is ignored, and the leading number of what remains is converted, so
// "1.2.3" reads as 1.2. A price with no number converts to "₹0", and amounts
// too large for an int64 are clamped.
func ConvertToINR(price string) string {
	numeric := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, price)
	usd, err := strconv.ParseFloat(leadingNumber(numeric), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		usd = 0
	}
	inr := math.Round(usd * USDToINR)
	if inr >= math.MaxInt64 {
		return fmt.Sprintf("₹%d", int64(math.MaxInt64))
	}
	return fmt.Sprintf("₹%d", int64(inr))
}

// leadingNumber returns the longest prefix of s made of digits with at most
// one decimal point.
func leadingNumber(s string) string {
	dot := false
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			continue
		}
		if dot {
			return s[:i]
		}
		dot = true
	}
	return s
}
