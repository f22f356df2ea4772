// Package api provides REST API endpoints for stored aircraft data.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"adsb_analytics/internal/adsb"
	"adsb_analytics/internal/storage"
)

// Server provides read access to observations and enrichment records.
type Server struct {
	store       storage.Store
	port        int
	authEnabled bool
	apiKeys     map[string]bool
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string
}

// NewServer creates an API server over the store.
func NewServer(store storage.Store, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	return &Server{
		store:       store,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/aircraft/{hex}", s.handleGetAircraft)
	r.Get("/aircraft/{hex}/observations", s.handleGetObservations)
	r.Get("/day/{date}/log", s.handleDayLog)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AircraftResponse combines enrichment metadata with sighting context.
type AircraftResponse struct {
	Hex        string                    `json:"hex"`
	Enrichment *storage.EnrichmentRecord `json:"enrichment,omitempty"`
	LastSeen   *storage.Observation      `json:"last_seen,omitempty"`
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	hex := adsb.NormalizeIdentifier(chi.URLParam(r, "hex"))
	if !adsb.ValidIdentifier(hex) {
		writeError(w, http.StatusBadRequest, "Invalid aircraft identifier")
		return
	}

	ctx := r.Context()
	rec, err := s.store.GetEnrichment(ctx, hex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	obs, err := s.store.ListObservationsByAircraft(ctx, hex, 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if rec == nil && len(obs) == 0 {
		writeError(w, http.StatusNotFound, "Aircraft never observed")
		return
	}

	resp := AircraftResponse{Hex: hex, Enrichment: rec}
	if len(obs) > 0 {
		resp.LastSeen = &obs[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetObservations(w http.ResponseWriter, r *http.Request) {
	hex := adsb.NormalizeIdentifier(chi.URLParam(r, "hex"))
	if !adsb.ValidIdentifier(hex) {
		writeError(w, http.StatusBadRequest, "Invalid aircraft identifier")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	obs, err := s.store.ListObservationsByAircraft(r.Context(), hex, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if obs == nil {
		obs = []storage.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleDayLog renders one day's observations as a plain-text log, one
// line per row, suitable for feeding to downstream summarizers.
func (s *Server) handleDayLog(w http.ResponseWriter, r *http.Request) {
	dateStr := chi.URLParam(r, "date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	obs, err := s.store.ListObservationsForDay(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(obs) > limit {
		obs = obs[:limit]
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, o := range obs {
		fmt.Fprintln(w, formatLogLine(&o))
	}
}

// formatLogLine renders one observation as
// "QFA123 (7C6DB8) at 37000 ft, 450 kt, -33.95, 151.18".
func formatLogLine(o *storage.Observation) string {
	flight := "N/A"
	if o.Flight != nil {
		flight = *o.Flight
	}
	alt := "?"
	if o.AltBaro != nil {
		alt = strconv.Itoa(*o.AltBaro)
	}
	speed := "?"
	if o.GroundSpeed != nil {
		speed = strconv.FormatFloat(*o.GroundSpeed, 'f', -1, 64)
	}
	lat, lon := "?", "?"
	if o.Lat != nil {
		lat = strconv.FormatFloat(*o.Lat, 'f', -1, 64)
	}
	if o.Lon != nil {
		lon = strconv.FormatFloat(*o.Lon, 'f', -1, 64)
	}
	return fmt.Sprintf("%s (%s) at %s ft, %s kt, %s, %s", flight, o.Hex, alt, speed, lat, lon)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
