package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keanulaw/NeoCare-App/internal/dialog"
	"github.com/keanulaw/NeoCare-App/internal/models"
)

type stubEngine struct {
	result dialog.Result
	calls  int
}

func (e *stubEngine) HandleUtterance(ctx context.Context, userID, fullName, text string) dialog.Result {
	e.calls++
	return e.result
}

type stubStore struct {
	consultants []*models.Consultant
	bookings    []models.BookingRequest
	messages    []models.Message
}

func (s *stubStore) ListConsultants(ctx context.Context) ([]*models.Consultant, error) {
	return s.consultants, nil
}

func (s *stubStore) GetConsultant(ctx context.Context, id string) (*models.Consultant, error) {
	for _, c := range s.consultants {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, assert.AnError
}

func (s *stubStore) GetConsultantByName(ctx context.Context, name string) (*models.Consultant, error) {
	for _, c := range s.consultants {
		if models.NormalizeName(c.Name) == models.NormalizeName(name) {
			return c, nil
		}
	}
	return nil, assert.AnError
}

func (s *stubStore) ListBookingRequests(ctx context.Context) ([]models.BookingRequest, error) {
	return s.bookings, nil
}

func (s *stubStore) ListBookingRequestsByUser(ctx context.Context, userID string) ([]models.BookingRequest, error) {
	var out []models.BookingRequest
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubStore) SaveMessage(ctx context.Context, m *models.Message) error {
	s.messages = append(s.messages, *m)
	return nil
}

func (s *stubStore) Transcript(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubSlots struct {
	free []string
	err  error
}

func (s *stubSlots) AvailableSlots(ctx context.Context, c *models.Consultant, date time.Time) ([]string, error) {
	return s.free, s.err
}

type fixture struct {
	server *httptest.Server
	engine *stubEngine
	store  *stubStore
	slots  *stubSlots
}

func setup(t *testing.T, requestsPerMinute, burst int) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	logger := zerolog.Nop()

	f := &fixture{
		engine: &stubEngine{result: dialog.Result{State: dialog.StateAwaitingBooking, Reply: "Shall we book an appointment? (Yes/No)"}},
		store: &stubStore{
			consultants: []*models.Consultant{{
				ID: "c1", Name: "Dr. Reyes",
				AvailableDays:     []string{"Monday"},
				ConsultationHours: []string{"8:00 AM to 9:00 AM"},
			}},
		},
		slots: &stubSlots{free: []string{"8:00 AM to 9:00 AM"}},
	}

	srv := NewHTTPServer(f.engine, f.store, f.slots, loc, requestsPerMinute, burst, &logger)
	f.server = httptest.NewServer(srv.Router())
	t.Cleanup(f.server.Close)
	return f
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestChatTurnRecordsTranscript(t *testing.T) {
	f := setup(t, 60, 5)

	resp := postJSON(t, f.server.URL+"/api/chat", ChatRequest{
		UserID: "u1", FullName: "Maria Cruz", Text: "I have morning sickness",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Shall we book an appointment? (Yes/No)", out.Reply)
	assert.Equal(t, "awaiting_booking_confirmation", out.State)
	assert.Equal(t, 1, f.engine.calls)

	require.Len(t, f.store.messages, 2)
	assert.Equal(t, models.SpeakerUser, f.store.messages[0].Speaker)
	assert.Equal(t, "I have morning sickness", f.store.messages[0].Text)
	assert.Equal(t, models.SpeakerEngine, f.store.messages[1].Speaker)
}

func TestChatValidation(t *testing.T) {
	f := setup(t, 60, 5)

	resp := postJSON(t, f.server.URL+"/api/chat", map[string]string{"user_id": "u1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp, err := http.Get(f.server.URL + "/api/chat")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestChatRateLimit(t *testing.T) {
	f := setup(t, 1, 2)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := postJSON(t, f.server.URL+"/api/chat", ChatRequest{UserID: "u1", Text: "hi"})
		statuses = append(statuses, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// A different user has their own bucket.
	resp := postJSON(t, f.server.URL+"/api/chat", ChatRequest{UserID: "u2", Text: "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsultantLookup(t *testing.T) {
	f := setup(t, 60, 5)

	resp, err := http.Get(f.server.URL + "/api/consultants?name=dr%20reyes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c models.Consultant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	assert.Equal(t, "c1", c.ID)

	missing, err := http.Get(f.server.URL + "/api/consultants?id=nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	f := setup(t, 60, 5)

	resp, err := http.Get(f.server.URL + "/api/availability?consultant_id=c1&date=2025-05-12")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out AvailabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "c1", out.ConsultantID)
	assert.Equal(t, []string{"8:00 AM to 9:00 AM"}, out.Slots)

	badDate, err := http.Get(f.server.URL + "/api/availability?consultant_id=c1&date=12-05-2025")
	require.NoError(t, err)
	defer badDate.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badDate.StatusCode)

	missing, err := http.Get(f.server.URL + "/api/availability?consultant_id=nope&date=2025-05-12")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestBookingsEndpoint(t *testing.T) {
	f := setup(t, 60, 5)
	f.store.bookings = []models.BookingRequest{
		{ID: "b1", UserID: "u1", Status: models.StatusPending},
		{ID: "b2", UserID: "u2", Status: models.StatusPending},
	}

	resp, err := http.Get(f.server.URL + "/api/bookings?user_id=u1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Bookings []models.BookingRequest `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Bookings, 1)
	assert.Equal(t, "b1", out.Bookings[0].ID)
}

func TestExportEndpoint(t *testing.T) {
	f := setup(t, 60, 5)
	f.store.bookings = []models.BookingRequest{
		{ID: "b1", UserID: "u1", Date: time.Now(), Status: models.StatusPending},
	}

	resp, err := http.Get(f.server.URL + "/api/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
}

func TestTranscriptEndpoint(t *testing.T) {
	f := setup(t, 60, 5)
	f.store.messages = []models.Message{
		{UserID: "u1", Speaker: models.SpeakerUser, Text: "hi"},
		{UserID: "u1", Speaker: models.SpeakerEngine, Text: "hello"},
	}

	resp, err := http.Get(f.server.URL + "/api/transcript?user_id=u1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Messages, 2)

	missing, err := http.Get(f.server.URL + "/api/transcript")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}
