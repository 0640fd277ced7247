// Package api exposes the booking engine over HTTP for the mobile chat UI
// and the clinic back office.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keanulaw/NeoCare-App/internal/dialog"
	"github.com/keanulaw/NeoCare-App/internal/models"
)

// ChatEngine processes one utterance per call.
type ChatEngine interface {
	HandleUtterance(ctx context.Context, userID, fullName, text string) dialog.Result
}

// Store is the read/write surface the API needs.
type Store interface {
	ListConsultants(ctx context.Context) ([]*models.Consultant, error)
	GetConsultant(ctx context.Context, id string) (*models.Consultant, error)
	GetConsultantByName(ctx context.Context, name string) (*models.Consultant, error)
	ListBookingRequests(ctx context.Context) ([]models.BookingRequest, error)
	ListBookingRequestsByUser(ctx context.Context, userID string) ([]models.BookingRequest, error)
	SaveMessage(ctx context.Context, m *models.Message) error
	Transcript(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

// SlotSource answers availability queries.
type SlotSource interface {
	AvailableSlots(ctx context.Context, c *models.Consultant, date time.Time) ([]string, error)
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	engine ChatEngine
	db     Store
	slots  SlotSource
	loc    *time.Location
	logger *zerolog.Logger

	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewHTTPServer wires the API. requestsPerMinute and burst bound each
// user's chat rate.
func NewHTTPServer(engine ChatEngine, db Store, slots SlotSource, loc *time.Location,
	requestsPerMinute, burst int, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		engine:   engine,
		db:       db,
		slots:    slots,
		loc:      loc,
		logger:   logger,
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Router returns the configured mux.
func (s *HTTPServer) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/consultants", s.handleConsultants)
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/transcript", s.handleTranscript)
	mux.HandleFunc("/api/bookings", s.handleBookings)
	mux.HandleFunc("/api/export", s.handleExport)
	return mux
}

func (s *HTTPServer) limiterFor(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[userID] = l
	}
	return l
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
