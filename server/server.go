// Package server exposes a Detector over HTTP.
//
// Coordinates arrive in plaintext and are encrypted server-side; the
// response carries the per-zone decisions only.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/metrics"
	"github.com/luxfi/geofence/zone"
)

// Server is the membership query server
type Server struct {
	base *detect.Detector

	// Detectors share the index; each request borrows one with its own session.
	pool sync.Pool
}

// New creates a server around a built detector
func New(d *detect.Detector) *Server {
	s := &Server{base: d}
	s.pool.New = func() any {
		return d.ShallowCopy()
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/zones", s.handleZones)
	r.Get("/bands", s.handleBands)
	r.Post("/locate", s.handleLocate)
	r.Post("/query", s.handleQuery)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("response_encode_failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.base.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"zones":  len(s.base.Zones()),
		"bands":  s.base.Index().Bands(),
		"width":  s.base.Index().Width(),
		"policy": cfg.Policy.String(),
	})
}

// ZoneInfo is the public view of a catalog zone
type ZoneInfo struct {
	Code      string     `json:"tollCode"`
	Name      string     `json:"name"`
	Highway   string     `json:"highway"`
	Type      zone.Type  `json:"type"`
	Reference zone.Point `json:"reference"`
	Band      int        `json:"band"`
	Geofences int        `json:"geofences"`
	Batched   bool       `json:"batched"`
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones := s.base.Zones()
	out := make([]ZoneInfo, len(zones))
	for i := range zones {
		z := &zones[i]
		out[i] = ZoneInfo{
			Code:      z.Code,
			Name:      z.Name,
			Highway:   z.Highway,
			Type:      z.Type,
			Reference: z.Reference,
			Band:      z.Band,
			Geofences: len(z.Geofences),
			Batched:   z.Batchable(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.base.Index().Summary())
}

// QueryRequest is a plaintext coordinate
type QueryRequest struct {
	Lat *float64 `json:"latitude"`
	Lon *float64 `json:"longitude"`
}

func (q *QueryRequest) point() (zone.Point, error) {
	if q.Lat == nil || q.Lon == nil {
		return zone.Point{}, errors.New("latitude and longitude are required")
	}
	if *q.Lat < -90 || *q.Lat > 90 || *q.Lon < -180 || *q.Lon > 180 {
		return zone.Point{}, errors.New("coordinate out of range")
	}
	return zone.Point{Lat: *q.Lat, Lon: *q.Lon}, nil
}

// MaxRequestBytes caps the body of coordinate requests
const MaxRequestBytes = 4 << 10

func decodePoint(w http.ResponseWriter, r *http.Request) (zone.Point, bool) {
	var req QueryRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
		} else {
			writeError(w, http.StatusBadRequest, err)
		}
		return zone.Point{}, false
	}
	p, err := req.point()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return zone.Point{}, false
	}
	return p, true
}

// LocateResponse is the band of a coordinate
type LocateResponse struct {
	Band   int     `json:"band"`
	Found  bool    `json:"found"`
	Low    float64 `json:"low,omitempty"`
	High   float64 `json:"high,omitempty"`
	Rounds int     `json:"decryptRounds"`
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}

	d := s.pool.Get().(*detect.Detector)
	defer s.pool.Put(d)

	band, rounds, err := d.Locate(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := LocateResponse{Band: band, Found: band >= 0, Rounds: rounds}
	if resp.Found {
		resp.Low, resp.High = d.Index().Bounds(band)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}

	d := s.pool.Get().(*detect.Detector)
	defer s.pool.Put(d)

	report, err := d.Detect(r.Context(), p)
	if err != nil {
		logger.L().Error("query_failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
