package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/clients"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/offline"
)

const maxBodyBytes = 1 << 20

type submitResponse struct {
	Status  string   `json:"status"`
	Offline bool     `json:"offline"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func (s *Service) handleOfflineStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.sync.OfflineStatus(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read offline status")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Status: "error", Error: "failed to read offline status"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleSubmitScout(w http.ResponseWriter, r *http.Request) {
	var report models.ScoutReport
	if !decodeBody(w, r, &report) {
		return
	}
	outcome, err := s.sync.SubmitScout(r.Context(), report)
	writeOutcome(w, outcome, err)
}

func (s *Service) handleSubmitPitScout(w http.ResponseWriter, r *http.Request) {
	var report models.PitScoutReport
	if !decodeBody(w, r, &report) {
		return
	}
	outcome, err := s.sync.SubmitPitScout(r.Context(), report)
	writeOutcome(w, outcome, err)
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.SyncNow(r.Context())
	switch {
	case errors.Is(err, offline.ErrDrainInProgress):
		writeJSON(w, http.StatusConflict, submitResponse{Status: "busy", Error: err.Error()})
	case err != nil:
		log.Error().Err(err).Msg("manual sync failed")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Status: "error", Error: "sync failed"})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Status: "error", Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, outcome offline.Outcome, err error) {
	var validationErr *offline.ValidationError
	var statusErr *clients.StatusError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, submitResponse{
			Status: "error",
			Error:  validationErr.Error(),
			Fields: validationErr.Fields,
		})
	case errors.As(err, &statusErr) && clients.IsClientError(err):
		writeJSON(w, statusErr.StatusCode, submitResponse{Status: "error", Error: apiErrorMessage(statusErr.Body)})
	case err != nil:
		log.Error().Err(err).Msg("submission failed")
		writeJSON(w, http.StatusInternalServerError, submitResponse{Status: "error", Error: "submission failed"})
	case outcome == offline.OutcomeQueued:
		writeJSON(w, http.StatusAccepted, submitResponse{
			Status:  "queued",
			Offline: true,
			Message: "Saved offline. It will sync when the connection returns.",
		})
	default:
		writeJSON(w, http.StatusOK, submitResponse{Status: "success"})
	}
}

// apiErrorMessage pulls the "error" field out of an API error body, falling
// back to the raw body.
func apiErrorMessage(body string) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
