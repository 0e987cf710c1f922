package uiapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/rewards"
	"github.com/awaistahir/ecocharge/internal/store"
)

const monthLayout = "2006-01"

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handlePutProfile creates or updates a profile. Fields missing from the body
// keep their stored value, or the vehicle default for a new profile.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	profile, err := s.store.GetProfile(ctx, username)
	status := http.StatusOK
	if errors.Is(err, store.ErrNotFound) {
		profile = engine.DefaultProfile(username)
		profile.Latitude, profile.Longitude = s.defaultLat, s.defaultLon
		status = http.StatusCreated
	} else if err != nil {
		respondErr(w, err)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile.Username = username

	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		respondErr(w, err)
		return
	}

	saved, err := s.store.GetProfile(ctx, username)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, status, saved)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := s.store.GetProfile(ctx, chi.URLParam(r, "username"))
	if err != nil {
		respondErr(w, err)
		return
	}

	actions, err := s.store.ListActions(ctx, profile.Username, time.Time{}, time.Time{})
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"username": profile.Username,
		"points":   profile.Points,
		"actions":  actions,
	})
}

// MonthlyReport summarises one user's month of eco actions
type MonthlyReport struct {
	Username    string             `json:"username"`
	VehicleType engine.VehicleType `json:"vehicle_type"`
	Month       string             `json:"month"`
	TotalPoints int                `json:"total_points"`
	MonthPoints int                `json:"month_points"`
	Actions     []store.Action     `json:"actions"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := time.Parse(monthLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "month must look like YYYY-MM")
			return
		}
		from = m
	}
	to := from.AddDate(0, 1, 0)

	profile, err := s.store.GetProfile(ctx, chi.URLParam(r, "username"))
	if err != nil {
		respondErr(w, err)
		return
	}

	actions, err := s.store.ListActions(ctx, profile.Username, from, to)
	if err != nil {
		respondErr(w, err)
		return
	}

	report := MonthlyReport{
		Username:    profile.Username,
		VehicleType: profile.VehicleType,
		Month:       from.Format(monthLayout),
		TotalPoints: profile.Points,
		Actions:     actions,
		GeneratedAt: now,
	}
	for _, a := range actions {
		report.MonthPoints += a.Points
	}

	respondJSON(w, http.StatusOK, report)
}

type recordActionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var body recordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := rewards.Award(r.Context(), s.store, chi.URLParam(r, "username"), body.Action)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
