// Package booking turns a fully specified appointment request into a
// persisted pending booking, re-validating availability at commit time.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keanulaw/NeoCare-App/internal/events"
	"github.com/keanulaw/NeoCare-App/internal/metrics"
	"github.com/keanulaw/NeoCare-App/internal/models"
	"github.com/keanulaw/NeoCare-App/internal/store"
)

// ErrSlotTaken is returned when the requested slot was reserved between
// selection and commit.
var ErrSlotTaken = errors.New("slot no longer available")

// Request carries everything needed to commit one appointment.
type Request struct {
	Consultant *models.Consultant
	UserID     string
	FullName   string
	Date       time.Time
	Slot       string
	Platform   string
}

// SlotChecker reports the currently free slots for a consultant on a date.
type SlotChecker interface {
	AvailableSlots(ctx context.Context, c *models.Consultant, date time.Time) ([]string, error)
}

// Store is the persistence surface the committer needs.
type Store interface {
	CreateBookingRequest(ctx context.Context, b *models.BookingRequest) error
}

// Service commits booking requests.
type Service struct {
	store  Store
	slots  SlotChecker
	bus    *events.Bus
	now    func() time.Time
	logger *zerolog.Logger
}

// NewService constructs a committer. bus may be nil when no subscribers
// are wired.
func NewService(st Store, slots SlotChecker, bus *events.Bus, logger *zerolog.Logger) *Service {
	return &Service{
		store:  st,
		slots:  slots,
		bus:    bus,
		now:    time.Now,
		logger: logger,
	}
}

// Commit re-checks availability, persists the booking as pending and
// publishes a creation event. Returns ErrSlotTaken when the slot is gone,
// either at the availability check or at insert.
func (s *Service) Commit(ctx context.Context, req Request) (*models.BookingRequest, error) {
	free, err := s.slots.AvailableSlots(ctx, req.Consultant, req.Date)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !containsSlot(free, req.Slot) {
		metrics.IncCommitConflict()
		return nil, ErrSlotTaken
	}

	b := &models.BookingRequest{
		ID:             uuid.NewString(),
		ConsultantID:   req.Consultant.ID,
		ConsultantName: req.Consultant.Name,
		UserID:         req.UserID,
		FullName:       req.FullName,
		Date:           req.Date,
		AvailableDay:   req.Date.Weekday().String(),
		Slot:           req.Slot,
		Platform:       req.Platform,
		Status:         models.StatusPending,
		CreatedAt:      s.now(),
	}

	if err := s.store.CreateBookingRequest(ctx, b); err != nil {
		if errors.Is(err, store.ErrDuplicateBooking) {
			metrics.IncCommitConflict()
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("consultant_id", b.ConsultantID).
		Str("user_id", b.UserID).
		Str("date", store.DateKey(b.Date)).
		Str("slot", b.Slot).
		Str("platform", b.Platform).
		Msg("booking request created")

	if s.bus != nil {
		if err := s.bus.PublishJSON(events.TypeBookingCreated, b); err != nil {
			s.logger.Warn().Err(err).Msg("publish booking event")
		}
	}
	return b, nil
}

func containsSlot(slots []string, want string) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}
