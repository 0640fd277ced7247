// Package schedule resolves a consultant's recurring weekly availability
// into concrete bookable (date, slot) pairs over a bounded lookahead window.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keanulaw/NeoCare-App/internal/dateparse"
	"github.com/keanulaw/NeoCare-App/internal/models"
)

// DefaultLookaheadDays bounds how far ahead candidate dates are enumerated.
const DefaultLookaheadDays = 14

// ReservationSource returns the slot labels already reserved for a
// consultant on a date. Implementations must query fresh state; the
// resolver never caches the result.
type ReservationSource interface {
	BookedSlots(ctx context.Context, consultantID string, date time.Time) ([]string, error)
}

// UpcomingDates walks day offsets 0..lookaheadDays-1 from now's calendar
// date and keeps every date whose civil weekday name is in weekdays,
// preserving chronological order.
func UpcomingDates(weekdays []string, lookaheadDays int, now time.Time) []time.Time {
	allowed := make(map[string]struct{}, len(weekdays))
	for _, w := range weekdays {
		allowed[normalizeWeekday(w)] = struct{}{}
	}

	var out []time.Time
	today := dateparse.Midnight(now)
	for i := 0; i < lookaheadDays; i++ {
		d := today.AddDate(0, 0, i)
		if _, ok := allowed[normalizeWeekday(d.Weekday().String())]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Resolver computes bookable slots against live reservation state.
type Resolver struct {
	reservations ReservationSource
}

// NewResolver creates a resolver backed by the given reservation source.
func NewResolver(reservations ReservationSource) *Resolver {
	return &Resolver{reservations: reservations}
}

// AvailableSlots returns the consultant's slot labels minus those already
// reserved on date, in the consultant's listed order. The reservation
// snapshot is fetched fresh on every call.
func (r *Resolver) AvailableSlots(ctx context.Context, c *models.Consultant, date time.Time) ([]string, error) {
	booked, err := r.reservations.BookedSlots(ctx, c.ID, date)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}

	taken := make(map[string]struct{}, len(booked))
	for _, s := range booked {
		taken[s] = struct{}{}
	}

	var free []string
	for _, slot := range c.ConsultationHours {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free, nil
}

// SelectableDates returns the upcoming dates on which the consultant has at
// least one free slot. Fully booked dates are never offered.
func (r *Resolver) SelectableDates(ctx context.Context, c *models.Consultant, lookaheadDays int, now time.Time) ([]time.Time, error) {
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}

	candidates := UpcomingDates(c.AvailableDays, lookaheadDays, now)
	var out []time.Time
	for _, date := range candidates {
		free, err := r.AvailableSlots(ctx, c, date)
		if err != nil {
			return nil, err
		}
		if len(free) > 0 {
			out = append(out, date)
		}
	}
	return out, nil
}

// MatchSlot finds the consultant slot whose canonical start time equals the
// canonical user time, searching only the given candidate labels.
func MatchSlot(candidates []string, canonicalTime string) (string, bool) {
	for _, slot := range candidates {
		start, ok := dateparse.SlotStart(slot)
		if ok && start == canonicalTime {
			return slot, true
		}
	}
	return "", false
}

func normalizeWeekday(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
