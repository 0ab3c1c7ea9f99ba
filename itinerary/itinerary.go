// Package itinerary generates trips from user preferences with a generative
// language model.
package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/tripdata"
)

var log = logging.Logger("itinerary")

// ErrEmptyResponse is returned when the generator produces no text.
var ErrEmptyResponse = errors.New("generator returned no text")

// promptTemplate asks for the trip shape that tripdata.Parse reads.
const promptTemplate = `Generate Travel Plan for Location: {location}, for {totalDays} Days for {traveller} with a {budget} budget. ` +
	`Give me a Hotels options list with HotelName, HotelAddress, Price, HotelImageUrl, GeoCoordinates, Rating, Description and placeId, ` +
	`and suggest an itinerary with PlaceName, PlaceDetails, PlaceImageUrl, GeoCoordinates, TicketPricing, Rating, TimeTravel, Time and placeId ` +
	`for each location for {totalDays} days, with each day's plan and the BestTimeToVisit. ` +
	`placeId is the Google Maps place id. ` +
	`Answer in JSON format as {"hotels": [...], "itinerary": [{"Day": 1, "plan": [...]}]}.`

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prompt returns the generation prompt for sel.
func Prompt(sel tripdata.Selection) string {
	return strings.NewReplacer(
		"{location}", sel.Location.Label,
		"{totalDays}", strconv.Itoa(sel.Days),
		"{traveller}", sel.Traveller,
		"{budget}", sel.Budget,
	).Replace(promptTemplate)
}

// Planner plans trips using a Generator.
type Planner struct {
	gen Generator
}

// NewPlanner creates a Planner.
func NewPlanner(gen Generator) *Planner {
	return &Planner{gen: gen}
}

// Plan validates sel and generates a trip for it. Validation errors are the
// tripdata sentinel errors. Unusable generated text is a *tripdata.ParseError.
func (p *Planner) Plan(ctx context.Context, sel tripdata.Selection) (*tripdata.Trip, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	text, err := p.gen.Generate(ctx, Prompt(sel))
	if err != nil {
		return nil, fmt.Errorf("cannot generate trip: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	trip, err := tripdata.Parse(text)
	if err != nil {
		log.Warnw("Generated trip is not usable", "location", sel.Location.Label, "err", err)
		return nil, err
	}
	log.Infow("Generated trip", "location", sel.Location.Label, "days", sel.Days, "hotels", len(trip.Hotels), "places", len(trip.PlaceKeys()))
	return trip, nil
}
