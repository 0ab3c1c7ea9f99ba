// Package tripstore stores generated trips and their likes, views and
// reviews in a datastore.
//
// Trips are kept under /trips/<id>. Each owner has an index of their trips
// under /users/<user id>/trips/<id>. Deleting a trip only marks it deleted.
package tripstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/tripdata"
)

var log = logging.Logger("tripstore")

// DefaultTopLimit is the number of trips Top returns for a non-positive limit.
const DefaultTopLimit = 6

const tripsPrefix = "/trips"

var (
	ErrNotFound      = errors.New("trip not found")
	ErrNotOwner      = errors.New("only the trip owner can do this")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrNoUser        = errors.New("user id is required")
)

// Store stores trip records.
type Store struct {
	ds  datastore.Datastore
	now func() time.Time

	// Serializes read-modify-write of records.
	mu sync.Mutex
}

// Option is a function that sets a value on a Store.
type Option func(*Store)

// WithClock sets the function used to timestamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store on ds. The datastore must be safe for concurrent use.
func New(ds datastore.Datastore, options ...Option) *Store {
	s := &Store{
		ds:  ds,
		now: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Create stores a new trip owned by owner.
func (s *Store) Create(ctx context.Context, owner User, sel tripdata.Selection, trip *tripdata.Trip) (*Record, error) {
	if owner.ID == "" {
		return nil, ErrNoUser
	}
	now := s.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Selection: sel,
		Trip:      trip,
		UserID:    owner.ID,
		UserEmail: owner.Email,
		IsPublic:  sel.IsPublic,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.ds.Put(ctx, userTripKey(owner.ID, rec.ID), nil); err != nil {
		return nil, fmt.Errorf("cannot index trip for user: %w", err)
	}
	log.Infow("Stored trip", "id", rec.ID, "user", owner.ID, "public", rec.IsPublic)
	return rec, nil
}

// Get returns the trip with the given id. Deleted trips are not found.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted() {
		return nil, ErrNotFound
	}
	return rec, nil
}

// RecordView counts a view of the trip and returns the updated trip.
func (s *Store) RecordView(ctx context.Context, id string) (*Record, error) {
	return s.update(ctx, id, func(rec *Record) error {
		rec.ViewCount++
		return nil
	})
}

// ListByUser returns the trips owned by a user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	results, err := s.ds.Query(ctx, query.Query{
		Prefix:   userTripsPrefix(userID),
		KeysOnly: true,
	})
	if err != nil {
		return nil, err
	}
	entries, err := results.Rest()
	if err != nil {
		return nil, err
	}

	recs := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		id := datastore.RawKey(entry.Key).BaseNamespace()
		rec, err := s.get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Warnw("User index refers to missing trip", "user", userID, "id", id)
				continue
			}
			return nil, err
		}
		if !rec.Deleted() {
			recs = append(recs, rec)
		}
	}
	sortNewest(recs)
	return recs, nil
}

// ListPublic returns all public trips, newest first.
func (s *Store) ListPublic(ctx context.Context) ([]*Record, error) {
	recs, err := s.all(ctx, func(rec *Record) bool {
		return rec.IsPublic && !rec.Deleted()
	})
	if err != nil {
		return nil, err
	}
	sortNewest(recs)
	return recs, nil
}

// Top returns up to limit public trips with the most likes. Ties are broken
// by views, then by age, newest first.
func (s *Store) Top(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	recs, err := s.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b *Record) int {
		if c := cmp.Compare(b.Likes, a.Likes); c != 0 {
			return c
		}
		return cmp.Compare(b.ViewCount, a.ViewCount)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// ToggleLike likes the trip for the user, or removes the like if the user
// already likes it.
func (s *Store) ToggleLike(ctx context.Context, id, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	return s.update(ctx, id, func(rec *Record) error {
		if i := slices.Index(rec.LikedBy, userID); i != -1 {
			rec.LikedBy = slices.Delete(rec.LikedBy, i, i+1)
		} else {
			rec.LikedBy = append(rec.LikedBy, userID)
		}
		rec.Likes = len(rec.LikedBy)
		return nil
	})
}

// AddReview adds a review to the trip and updates its average rating. A user's
// later review replaces their earlier one.
func (s *Store) AddReview(ctx context.Context, id string, review Review) (*Record, error) {
	if review.UserID == "" {
		return nil, ErrNoUser
	}
	if review.Rating < 1 || review.Rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.update(ctx, id, func(rec *Record) error {
		review.CreatedAt = s.now()
		i := slices.IndexFunc(rec.Reviews, func(r Review) bool {
			return r.UserID == review.UserID
		})
		if i != -1 {
			rec.Reviews[i] = review
		} else {
			rec.Reviews = append(rec.Reviews, review)
		}
		rec.AverageRating = rec.averageRating()
		return nil
	})
}

// Delete marks the trip deleted. Only the owner can delete a trip.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	_, err := s.update(ctx, id, func(rec *Record) error {
		if rec.UserID != userID {
			return ErrNotOwner
		}
		rec.Status = StatusDeleted
		return nil
	})
	if err != nil {
		return err
	}
	log.Infow("Deleted trip", "id", id, "user", userID)
	return nil
}

// update applies fn to a stored, non-deleted trip and stores the result.
func (s *Store) update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = fn(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = s.now()
	if err = s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.ds.Get(ctx, tripKey(id))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec := new(Record)
	if err = json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("cannot decode trip %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err = s.ds.Put(ctx, tripKey(rec.ID), data); err != nil {
		return fmt.Errorf("cannot store trip: %w", err)
	}
	return nil
}

func (s *Store) all(ctx context.Context, keep func(*Record) bool) ([]*Record, error) {
	results, err := s.ds.Query(ctx, query.Query{Prefix: tripsPrefix})
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var recs []*Record
	for r := range results.Next() {
		if r.Error != nil {
			return nil, r.Error
		}
		rec := new(Record)
		if err = json.Unmarshal(r.Value, rec); err != nil {
			log.Errorw("Cannot decode stored trip", "key", r.Key, "err", err)
			continue
		}
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func sortNewest(recs []*Record) {
	slices.SortFunc(recs, func(a, b *Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func tripKey(id string) datastore.Key {
	return datastore.NewKey(tripsPrefix).ChildString(id)
}

func userTripsPrefix(userID string) string {
	return datastore.NewKey("/users").ChildString(userID).ChildString("trips").String()
}

func userTripKey(userID, id string) datastore.Key {
	return datastore.NewKey(userTripsPrefix(userID)).ChildString(id)
}
