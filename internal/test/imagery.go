package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// ImageryServer is an in-process stand-in for the imagery service. Places and
// their photos are registered by tests. Unknown places answer 404. Media
// requests answer with a small JPEG-typed body unless told to fail.
type ImageryServer struct {
	*httptest.Server

	// APIKey, if set, is required in the credential header of every request.
	APIKey string

	MetadataCalls atomic.Int32
	MediaCalls    atomic.Int32

	mu             sync.Mutex
	photos         map[string][]string
	metadataStatus map[string]int
	mediaStatus    map[string]int
	gate           chan struct{}
}

// NewImageryServer starts an ImageryServer that is closed when the test ends.
func NewImageryServer(t testing.TB) *ImageryServer {
	s := &ImageryServer{
		photos:         make(map[string][]string),
		metadataStatus: make(map[string]int),
		mediaStatus:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetPhotos registers a place with the given photo names. No names registers a
// place that has no photos.
func (s *ImageryServer) SetPhotos(placeKey string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if names == nil {
		names = []string{}
	}
	s.photos[placeKey] = names
}

// FailMetadata makes metadata requests for placeKey answer with status.
func (s *ImageryServer) FailMetadata(placeKey string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataStatus[placeKey] = status
}

// FailMedia makes media requests for photoName answer with status.
func (s *ImageryServer) FailMedia(photoName string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaStatus[photoName] = status
}

// Hold makes metadata requests wait until the returned release function is
// called. Release is idempotent.
func (s *ImageryServer) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *ImageryServer) serve(w http.ResponseWriter, r *http.Request) {
	if s.APIKey != "" && r.Header.Get("X-Goog-Api-Key") != s.APIKey {
		http.Error(w, "permission denied", http.StatusForbidden)
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(p, "/media"):
		s.MediaCalls.Add(1)
		s.serveMedia(w, strings.TrimSuffix(p, "/media"))
	case strings.HasSuffix(p, "/photos"):
		s.MetadataCalls.Add(1)
		s.serveMetadata(w, r, strings.TrimSuffix(p, "/photos"))
	default:
		http.NotFound(w, r)
	}
}

func (s *ImageryServer) serveMetadata(w http.ResponseWriter, r *http.Request, placeKey string) {
	s.mu.Lock()
	gate := s.gate
	status := s.metadataStatus[placeKey]
	names, ok := s.photos[placeKey]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		http.Error(w, "place not found", http.StatusNotFound)
		return
	}

	type photo struct {
		Name string `json:"name"`
	}
	body := struct {
		Photos []photo `json:"photos"`
	}{
		Photos: make([]photo, len(names)),
	}
	for i, name := range names {
		body.Photos[i].Name = name
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&body)
}

func (s *ImageryServer) serveMedia(w http.ResponseWriter, photoName string) {
	s.mu.Lock()
	status := s.mediaStatus[photoName]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
}
