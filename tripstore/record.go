package tripstore

import (
	"slices"
	"time"

	"github.com/tripsage/go-placephoto/tripdata"
)

// Trip status values.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// User identifies the user acting on the store.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Review is a user's rating of a trip.
type Review struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is a stored trip with its social data.
type Record struct {
	ID            string             `json:"id"`
	Selection     tripdata.Selection `json:"userSelection"`
	Trip          *tripdata.Trip     `json:"tripData"`
	UserID        string             `json:"userId"`
	UserEmail     string             `json:"userEmail,omitempty"`
	IsPublic      bool               `json:"isPublic"`
	ViewCount     int                `json:"viewCount"`
	Likes         int                `json:"likes"`
	LikedBy       []string           `json:"likedBy,omitempty"`
	Reviews       []Review           `json:"reviews,omitempty"`
	AverageRating float64            `json:"averageRating"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// LikedByUser reports whether the user has liked the trip.
func (r *Record) LikedByUser(userID string) bool {
	return slices.Contains(r.LikedBy, userID)
}

// Deleted reports whether the trip has been deleted.
func (r *Record) Deleted() bool {
	return r.Status == StatusDeleted
}

func (r *Record) averageRating() float64 {
	if len(r.Reviews) == 0 {
		return 0
	}
	var sum int
	for _, rev := range r.Reviews {
		sum += rev.Rating
	}
	return float64(sum) / float64(len(r.Reviews))
}
