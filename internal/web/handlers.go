package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-scanner/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// healthCheck handles the health check endpoint.
func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) listPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.ListPeople(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list people")
		return
	}
	if people == nil {
		people = []store.Person{}
	}
	respondJSON(w, http.StatusOK, people)
}

// EffectiveMatch is one reviewable match on a photo: the recognition after
// corrections, plus its review state.
type EffectiveMatch struct {
	store.Recognition
	Status store.CorrectionStatus `json:"status"`
}

// PhotoResponse is the review view of one photo record.
type PhotoResponse struct {
	*store.PhotoRecord
	EffectiveMatches []EffectiveMatch `json:"effective_matches"`
}

func (s *Server) getPhoto(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	rec, err := s.store.GetPhoto(r.Context(), hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}

	matches := []EffectiveMatch{}
	for _, m := range rec.EffectiveMatches() {
		matches = append(matches, EffectiveMatch{
			Recognition: m,
			Status:      rec.StatusFor(m.PersonID),
		})
	}

	respondJSON(w, http.StatusOK, PhotoResponse{
		PhotoRecord:      rec,
		EffectiveMatches: matches,
	})
}

// CorrectionRequest records one human decision for a person on a photo.
type CorrectionRequest struct {
	Person string               `json:"person"`
	Type   store.CorrectionType `json:"type"`
}

func (s *Server) applyCorrection(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Person == "" {
		respondError(w, http.StatusBadRequest, "person is required")
		return
	}

	var person store.Person
	switch req.Type {
	case store.CorrectionFalseNegative:
		// Adding someone the gateway missed may introduce a new identity.
		p, _, err := s.store.EnsurePerson(r.Context(), req.Person)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to resolve person")
			return
		}
		person = p
	case store.CorrectionApproved, store.CorrectionFalsePositive:
		// Approving or rejecting presumes the person is already known.
		p, err := s.store.FindPersonByName(r.Context(), req.Person)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to resolve person")
			return
		}
		if p == nil {
			respondError(w, http.StatusNotFound, "person not found")
			return
		}
		person = *p
	default:
		respondError(w, http.StatusBadRequest, "invalid correction type")
		return
	}

	applied, err := s.store.ApplyCorrection(r.Context(), hash, person.ID, person.Name, req.Type)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to apply correction")
		return
	}
	if !applied {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}

	// Return the updated review view.
	rec, err := s.store.GetPhoto(r.Context(), hash)
	if err != nil || rec == nil {
		respondError(w, http.StatusInternalServerError, "failed to reload photo")
		return
	}
	matches := []EffectiveMatch{}
	for _, m := range rec.EffectiveMatches() {
		matches = append(matches, EffectiveMatch{
			Recognition: m,
			Status:      rec.StatusFor(m.PersonID),
		})
	}
	respondJSON(w, http.StatusOK, PhotoResponse{
		PhotoRecord:      rec,
		EffectiveMatches: matches,
	})
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	scans, err := s.store.ListScans(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if scans == nil {
		scans = []store.ScanRun{}
	}
	respondJSON(w, http.StatusOK, scans)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
