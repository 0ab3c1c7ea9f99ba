package server

import (
	"net/http"
)

type photoResponse struct {
	PlaceID  string `json:"placeId"`
	URL      string `json:"url"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached"`
}

// getPhoto resolves a place photo. A place that cannot be resolved still
// answers with a fallback image, never an error status.
func (s *Server) getPhoto(w http.ResponseWriter, r *http.Request) {
	placeID := r.PathValue("placeID")
	res, err := s.cache.Resolve(r.Context(), placeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Failure != nil {
		log.Debugw("Serving fallback photo", "place", placeID, "reason", res.Failure.Kind.String())
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, res.Ref, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, photoResponse{
		PlaceID:  placeID,
		URL:      res.Ref,
		Fallback: res.Fallback,
		Cached:   res.Cached,
	})
}
