package itinerary_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tripsage/go-placephoto/itinerary"
	"github.com/tripsage/go-placephoto/tripdata"
)

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

var goa = tripdata.Selection{
	Location:  tripdata.Location{Label: "Goa, India", PlaceID: "goa"},
	Days:      2,
	Budget:    "Cheap",
	Traveller: "Friends",
}

func TestPrompt(t *testing.T) {
	p := itinerary.Prompt(goa)
	require.Contains(t, p, "Location: Goa, India,")
	require.Contains(t, p, "for 2 Days for Friends with a Cheap budget")
	require.Contains(t, p, "for each location for 2 days")
	for _, placeholder := range []string{"{location}", "{totalDays}", "{traveller}", "{budget}"} {
		require.NotContains(t, p, placeholder)
	}
	require.Contains(t, p, `{"hotels": [...]`)
}

func TestPlan(t *testing.T) {
	gen := &fakeGenerator{
		text: "```json\n{\"hotels\": [{\"HotelName\": \"Palm Stay\", \"placeId\": \"h1\"}], \"plans\": [{\"Day\": 1, \"plan\": [{\"PlaceName\": \"Baga Beach\", \"placeId\": \"p1\"}]}]}\n```",
	}
	trip, err := itinerary.NewPlanner(gen).Plan(context.Background(), goa)
	require.NoError(t, err)
	require.Equal(t, []string{"h1", "p1"}, trip.PlaceKeys())
	require.Len(t, gen.prompts, 1)
	require.Equal(t, itinerary.Prompt(goa), gen.prompts[0])
}

func TestPlanInvalidSelection(t *testing.T) {
	gen := &fakeGenerator{}
	sel := goa
	sel.Days = 7
	_, err := itinerary.NewPlanner(gen).Plan(context.Background(), sel)
	require.ErrorIs(t, err, tripdata.ErrDays)
	require.Empty(t, gen.prompts)
}

func TestPlanFailures(t *testing.T) {
	ctx := context.Background()

	cause := errors.New("quota exceeded")
	_, err := itinerary.NewPlanner(&fakeGenerator{err: cause}).Plan(ctx, goa)
	require.ErrorIs(t, err, cause)

	_, err = itinerary.NewPlanner(&fakeGenerator{text: "  "}).Plan(ctx, goa)
	require.ErrorIs(t, err, itinerary.ErrEmptyResponse)

	_, err = itinerary.NewPlanner(&fakeGenerator{text: "Sorry, I cannot help."}).Plan(ctx, goa)
	var perr *tripdata.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := itinerary.NewGemini(context.Background(), "", "")
	require.Error(t, err)
}
