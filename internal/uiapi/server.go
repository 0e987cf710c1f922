package uiapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/jobs"
	"github.com/awaistahir/ecocharge/internal/lifestyle"
	"github.com/awaistahir/ecocharge/internal/log"
	"github.com/awaistahir/ecocharge/internal/planner"
	"github.com/awaistahir/ecocharge/internal/rewards"
	"github.com/awaistahir/ecocharge/internal/store"
	"github.com/awaistahir/ecocharge/internal/weather"
)

const version = "1.0.0"

type Server struct {
	planner        *planner.Planner
	store          *store.Store
	cache          *weather.CachedSource
	jobs           JobLister
	defaultLat     float64
	defaultLon     float64
	allowedOrigins []string
	startedAt      time.Time
}

// Option configures a Server
type Option func(*Server)

// WithCache exposes forecast cache statistics on the status endpoint
func WithCache(c *weather.CachedSource) Option {
	return func(s *Server) { s.cache = c }
}

// JobLister reports the background jobs a daemon has scheduled
type JobLister interface {
	ListJobs() []jobs.JobInfo
}

// WithJobs lists scheduled jobs on the status endpoint
func WithJobs(l JobLister) Option {
	return func(s *Server) { s.jobs = l }
}

// WithDefaultLocation sets the coordinates used when a request names neither a profile nor a location
func WithDefaultLocation(lat, lon float64) Option {
	return func(s *Server) {
		s.defaultLat = lat
		s.defaultLon = lon
	}
}

// WithAllowedOrigins sets the CORS origin list
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

func NewServer(p *planner.Planner, st *store.Store, opts ...Option) *Server {
	def := engine.DefaultProfile("")
	s := &Server{
		planner:        p,
		store:          st,
		defaultLat:     def.Latitude,
		defaultLon:     def.Longitude,
		allowedOrigins: []string{"*"},
		startedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/forecast", s.handleForecast)
		r.Post("/plan", s.handlePlan)
		r.Post("/simulate", s.handleSimulate)
		r.Get("/actions", s.handleListCatalogue)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/profiles/{username}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Put("/", s.handlePutProfile)
			r.Get("/history", s.handleHistory)
			r.Get("/report", s.handleReport)
			r.Post("/actions", s.handleRecordAction)
		})
	})

	return r
}

// requestLogger logs each request through zap once it completes
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":         "ok",
		"version":        version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	}
	if s.cache != nil {
		hits, misses := s.cache.CacheStats()
		status["forecast_cache"] = map[string]int{
			"entries": s.cache.Len(),
			"hits":    hits,
			"misses":  misses,
		}
	}
	if s.jobs != nil {
		status["jobs"] = s.jobs.ListJobs()
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon := s.defaultLat, s.defaultLon

	if username := q.Get("username"); username != "" {
		profile, err := s.store.GetProfile(r.Context(), username)
		if err != nil {
			respondErr(w, err)
			return
		}
		lat, lon = profile.Latitude, profile.Longitude
	}

	var err error
	if lat, err = floatParam(q.Get("lat"), lat); err != nil {
		respondError(w, http.StatusBadRequest, "invalid lat")
		return
	}
	if lon, err = floatParam(q.Get("lon"), lon); err != nil {
		respondError(w, http.StatusBadRequest, "invalid lon")
		return
	}
	hours, err := intParam(q.Get("hours"), 0)
	if err != nil || hours < 0 {
		respondError(w, http.StatusBadRequest, "invalid hours")
		return
	}

	series, err := s.planner.Forecast(r.Context(), lat, lon, hours)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"latitude":  lat,
		"longitude": lon,
		"hours":     series,
	})
}

// PlanRequest is the body of POST /api/plan. Unset fields come from the
// named profile, or from the vehicle defaults when no profile is given.
type PlanRequest struct {
	Username           string   `json:"username,omitempty"`
	Departure          string   `json:"departure"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	BatteryCapacityKWh *float64 `json:"battery_capacity_kwh,omitempty"`
	CurrentSoC         *float64 `json:"current_soc,omitempty"`
	TargetSoC          *float64 `json:"target_soc,omitempty"`
	ChargerPowerKW     *float64 `json:"charger_power_kw,omitempty"`
	HorizonHours       int      `json:"horizon_hours,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	departure, err := time.Parse(time.RFC3339, body.Departure)
	if err != nil {
		respondError(w, http.StatusBadRequest, "departure must be an RFC 3339 timestamp")
		return
	}

	profile := engine.DefaultProfile(body.Username)
	profile.Latitude, profile.Longitude = s.defaultLat, s.defaultLon
	if body.Username != "" {
		if profile, err = s.store.GetProfile(r.Context(), body.Username); err != nil {
			respondErr(w, err)
			return
		}
	}

	req := planner.Request{
		Latitude:     profile.Latitude,
		Longitude:    profile.Longitude,
		Departure:    departure,
		Charge:       profile.ChargeRequirement(),
		HorizonHours: body.HorizonHours,
	}
	override(&req.Latitude, body.Latitude)
	override(&req.Longitude, body.Longitude)
	override(&req.Charge.BatteryCapacityKWh, body.BatteryCapacityKWh)
	override(&req.Charge.CurrentSoCPercent, body.CurrentSoC)
	override(&req.Charge.TargetSoCPercent, body.TargetSoC)
	override(&req.Charge.ChargerPowerKW, body.ChargerPowerKW)

	plan, err := s.planner.Plan(r.Context(), req)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

type simulateRequest struct {
	Scenario string `json:"scenario"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var body simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Scenario == "" {
		respondError(w, http.StatusBadRequest, "scenario is required, e.g. 'bike 6 km to work 5 days a week'")
		return
	}

	respondJSON(w, http.StatusOK, lifestyle.Simulate(body.Scenario))
}

func (s *Server) handleListCatalogue(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rewards.Catalogue())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 8)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	entries, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps domain errors onto HTTP status codes
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, rewards.ErrUnknownAction):
		respondError(w, http.StatusBadRequest, err.Error())
	case weather.IsUpstream(err):
		log.Warnw("forecast provider failed", "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Errorw("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
