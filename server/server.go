// Package server is the HTTP interface to place photos and trips.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/apierror"
	"github.com/tripsage/go-placephoto/itinerary"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/tripdata"
	"github.com/tripsage/go-placephoto/tripstore"
)

var log = logging.Logger("server")

// Identity headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

const (
	// Non-standard status for a client that went away before the response.
	statusClientClosed = 499

	maxBodySize     = 1 << 20
	prefetchTimeout = 30 * time.Second
)

var errNoIdentity = errors.New("sign in required")

// Server serves the HTTP API.
type Server struct {
	cache   *photocache.Cache
	trips   *tripstore.Store
	planner *itinerary.Planner
	mux     *http.ServeMux

	// Tracks background photo prefetches.
	wg sync.WaitGroup
}

// New creates a Server. A nil planner disables trip creation.
func New(cache *photocache.Cache, trips *tripstore.Store, planner *itinerary.Planner) *Server {
	s := &Server{
		cache:   cache,
		trips:   trips,
		planner: planner,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /photos/{$}", s.getPhoto)
	s.mux.HandleFunc("GET /photos/{placeID}", s.getPhoto)

	s.mux.HandleFunc("POST /trips", s.createTrip)
	s.mux.HandleFunc("GET /trips/public", s.listPublic)
	s.mux.HandleFunc("GET /trips/top", s.listTop)
	s.mux.HandleFunc("GET /trips/{id}", s.getTrip)
	s.mux.HandleFunc("DELETE /trips/{id}", s.deleteTrip)
	s.mux.HandleFunc("POST /trips/{id}/like", s.likeTrip)
	s.mux.HandleFunc("POST /trips/{id}/reviews", s.reviewTrip)
	s.mux.HandleFunc("GET /users/me/trips", s.listMine)

	s.mux.HandleFunc("GET /healthz", s.health)
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(sw, r)

		log.Debugw("Handled request", "id", reqID, "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "elapsed", time.Since(start))
	})
}

// Close waits for background work started by requests to finish.
func (s *Server) Close() {
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"photoCache": map[string]any{
			"size":        stats.Size,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"resolutions": stats.Resolutions,
			"shared":      stats.Shared,
		},
	})
}

// userFromRequest returns the identity of the caller.
func userFromRequest(r *http.Request) (tripstore.User, bool) {
	user := tripstore.User{
		ID:    r.Header.Get(HeaderUserID),
		Email: r.Header.Get(HeaderUserEmail),
		Name:  r.Header.Get(HeaderUserName),
	}
	return user, user.ID != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorw("Cannot encode response", "err", err)
		apierror.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return apierror.New(err, http.StatusBadRequest)
	}
	return nil
}

// writeError writes err with the status that fits it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var parseErr *tripdata.ParseError
	switch {
	case r.Context().Err() != nil:
		status = statusClientClosed
	case errors.Is(err, errNoIdentity), errors.Is(err, tripstore.ErrNoUser):
		status = http.StatusUnauthorized
	case errors.Is(err, tripstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tripstore.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, tripstore.ErrInvalidRating),
		errors.Is(err, tripdata.ErrDays),
		errors.Is(err, tripdata.ErrLocation),
		errors.Is(err, tripdata.ErrBudget),
		errors.Is(err, tripdata.ErrTraveller):
		status = http.StatusBadRequest
	case errors.As(err, &parseErr), errors.Is(err, itinerary.ErrEmptyResponse):
		status = http.StatusBadGateway
	default:
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			apierror.Write(w, err)
			return
		}
		log.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		status = http.StatusInternalServerError
	}
	apierror.Write(w, apierror.New(err, status))
}

// statusWriter records the status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
