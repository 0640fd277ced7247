package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/keanulaw/NeoCare-App/internal/export"
	"github.com/keanulaw/NeoCare-App/internal/metrics"
	"github.com/keanulaw/NeoCare-App/internal/models"
)

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Text     string `json:"text"`
}

// ChatResponse is the reply for POST /api/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
	State string `json:"state"`
}

// handleChat runs one conversation turn.
// POST /api/chat
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("chat")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	if !s.limiterFor(req.UserID).Allow() {
		writeError(w, http.StatusTooManyRequests, "too many messages; slow down")
		return
	}

	ctx := r.Context()
	if err := s.db.SaveMessage(ctx, &models.Message{
		UserID: req.UserID, Speaker: models.SpeakerUser, Text: req.Text,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("save user message")
	}

	result := s.engine.HandleUtterance(ctx, req.UserID, req.FullName, req.Text)

	if err := s.db.SaveMessage(ctx, &models.Message{
		UserID: req.UserID, Speaker: models.SpeakerEngine, Text: result.Reply,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("save engine message")
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: result.Reply, State: string(result.State)})
}

// handleConsultants lists the consultant catalog, or returns a single
// consultant when id or name is given. Name lookup is fuzzy ("Dr." prefix
// and casing ignored).
// GET /api/consultants[?id=...|name=...]
func (s *HTTPServer) handleConsultants(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("consultants")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		consultant, err := s.db.GetConsultant(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "consultant not found")
			return
		}
		writeJSON(w, http.StatusOK, consultant)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		consultant, err := s.db.GetConsultantByName(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusNotFound, "consultant not found")
			return
		}
		writeJSON(w, http.StatusOK, consultant)
		return
	}

	consultants, err := s.db.ListConsultants(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list consultants")
		writeError(w, http.StatusInternalServerError, "failed to list consultants")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultants": consultants})
}

// AvailabilityResponse is the reply for GET /api/availability.
type AvailabilityResponse struct {
	ConsultantID string   `json:"consultant_id"`
	Date         string   `json:"date"`
	Slots        []string `json:"slots"`
}

// handleAvailability returns the free slots for one consultant and date.
// GET /api/availability?consultant_id=...&date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	consultantID := r.URL.Query().Get("consultant_id")
	dateStr := r.URL.Query().Get("date")
	if consultantID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "consultant_id and date are required")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	consultant, err := s.db.GetConsultant(r.Context(), consultantID)
	if err != nil {
		writeError(w, http.StatusNotFound, "consultant not found")
		return
	}

	slots, err := s.slots.AvailableSlots(r.Context(), consultant, date)
	if err != nil {
		s.logger.Error().Err(err).Str("consultant_id", consultantID).Msg("availability query")
		writeError(w, http.StatusInternalServerError, "failed to resolve availability")
		return
	}
	if slots == nil {
		slots = []string{}
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		ConsultantID: consultantID,
		Date:         dateStr,
		Slots:        slots,
	})
}

// handleTranscript returns a user's conversation history.
// GET /api/transcript?user_id=...
func (s *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("transcript")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	messages, err := s.db.Transcript(r.Context(), userID, 200)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("transcript query")
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleBookings lists booking requests, optionally for one user.
// GET /api/bookings[?user_id=...]
func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		bookings []models.BookingRequest
		err      error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		bookings, err = s.db.ListBookingRequestsByUser(r.Context(), userID)
	} else {
		bookings, err = s.db.ListBookingRequests(r.Context())
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("bookings query")
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []models.BookingRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleExport streams all bookings as an Excel workbook.
// GET /api/export
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.db.ListBookingRequests(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("export query")
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", time.Now().In(s.loc).Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("export write")
	}
}
