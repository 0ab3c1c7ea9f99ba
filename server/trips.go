package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tripsage/go-placephoto/apierror"
	"github.com/tripsage/go-placephoto/tripdata"
	"github.com/tripsage/go-placephoto/tripstore"
)

// tripResponse is a trip record with the photo of each place in it.
type tripResponse struct {
	*tripstore.Record
	Photos map[string]string `json:"photos"`
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) createTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, r, errNoIdentity)
		return
	}
	if s.planner == nil {
		apierror.Write(w, apierror.New(errors.New("trip generation is not configured"), http.StatusServiceUnavailable))
		return
	}

	var sel tripdata.Selection
	if err := decodeBody(w, r, &sel); err != nil {
		writeError(w, r, err)
		return
	}

	trip, err := s.planner.Plan(r.Context(), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.trips.Create(r.Context(), user, sel, trip)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.prefetch(r.Context(), rec.ID, trip.PlaceKeys())
	writeJSON(w, http.StatusCreated, rec)
}

// prefetch warms the photo cache for a new trip in the background.
func (s *Server) prefetch(ctx context.Context, tripID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), prefetchTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.cache.Prefetch(ctx, keys...); err != nil {
			log.Warnw("Photo prefetch incomplete", "trip", tripID, "err", err)
			return
		}
		log.Debugw("Prefetched trip photos", "trip", tripID, "places", len(keys))
	}()
}

func (s *Server) getTrip(w http.ResponseWriter, r *http.Request) {
	rec, err := s.trips.RecordView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var keys []string
	if rec.Trip != nil {
		keys = rec.Trip.PlaceKeys()
	}
	photos, err := s.cache.ResolveAll(r.Context(), keys...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripResponse{Record: rec, Photos: photos})
}

func (s *Server) listPublic(w http.ResponseWriter, r *http.Request) {
	recs, err := s.trips.ListPublic(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(recs))
}

func (s *Server) listTop(w http.ResponseWriter, r *http.Request) {
	limit := tripstore.DefaultTopLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			apierror.Write(w, apierror.New(errors.New("limit must be a positive integer"), http.StatusBadRequest))
			return
		}
		limit = n
	}
	recs, err := s.trips.Top(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(recs))
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, r, errNoIdentity)
		return
	}
	recs, err := s.trips.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(recs))
}

func (s *Server) likeTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, r, errNoIdentity)
		return
	}
	rec, err := s.trips.ToggleLike(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) reviewTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, r, errNoIdentity)
		return
	}
	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	rec, err := s.trips.AddReview(r.Context(), r.PathValue("id"), tripstore.Review{
		UserID:   user.ID,
		UserName: name,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteTrip(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeError(w, r, errNoIdentity)
		return
	}
	if err := s.trips.Delete(r.Context(), r.PathValue("id"), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orEmpty(recs []*tripstore.Record) []*tripstore.Record {
	if recs == nil {
		return []*tripstore.Record{}
	}
	return recs
}
