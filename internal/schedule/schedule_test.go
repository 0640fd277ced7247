package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keanulaw/NeoCare-App/internal/models"
)

type fakeReservations struct {
	booked map[string][]string // "consultantID|YYYY-MM-DD" -> slots
	err    error
	calls  int
}

func (f *fakeReservations) BookedSlots(_ context.Context, consultantID string, date time.Time) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.booked[consultantID+"|"+date.Format("2006-01-02")], nil
}

func wednesday() time.Time {
	return time.Date(2025, time.May, 7, 9, 0, 0, 0, time.UTC)
}

func TestUpcomingDatesKeepsOnlyListedWeekdays(t *testing.T) {
	dates := UpcomingDates([]string{"Monday", "Wednesday"}, 14, wednesday())

	require.NotEmpty(t, dates)
	var prev time.Time
	for _, d := range dates {
		wd := d.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Wednesday, "unexpected weekday %s", wd)
		if !prev.IsZero() {
			assert.True(t, d.After(prev), "dates out of order")
		}
		prev = d
	}
	// Offset 0 counts: the reference Wednesday itself is included.
	assert.Equal(t, wednesday().Format("2006-01-02"), dates[0].Format("2006-01-02"))
	// 14 days from a Wednesday cover 2 Mondays and 2 Wednesdays.
	assert.Len(t, dates, 4)
}

func TestUpcomingDatesCaseInsensitive(t *testing.T) {
	dates := UpcomingDates([]string{"monday", "WEDNESDAY"}, 7, wednesday())
	assert.NotEmpty(t, dates)
}

func TestUpcomingDatesEmptySet(t *testing.T) {
	assert.Empty(t, UpcomingDates(nil, 14, wednesday()))
}

func TestAvailableSlotsRemovesBooked(t *testing.T) {
	c := &models.Consultant{
		ID:                "c1",
		ConsultationHours: []string{"8:00 AM to 9:00 AM", "9:00 AM to 10:00 AM", "10:00 AM to 11:00 AM"},
	}
	date := time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)
	src := &fakeReservations{booked: map[string][]string{
		"c1|2025-05-12": {"9:00 AM to 10:00 AM"},
	}}

	r := NewResolver(src)
	free, err := r.AvailableSlots(context.Background(), c, date)
	require.NoError(t, err)
	assert.Equal(t, []string{"8:00 AM to 9:00 AM", "10:00 AM to 11:00 AM"}, free)
}

func TestAvailableSlotsIdempotent(t *testing.T) {
	c := &models.Consultant{ID: "c1", ConsultationHours: []string{"8:00 AM to 9:00 AM"}}
	date := time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)
	src := &fakeReservations{}

	r := NewResolver(src)
	first, err := r.AvailableSlots(context.Background(), c, date)
	require.NoError(t, err)
	second, err := r.AvailableSlots(context.Background(), c, date)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Snapshot is re-fetched on every call, never cached.
	assert.Equal(t, 2, src.calls)
}

func TestAvailableSlotsPropagatesError(t *testing.T) {
	c := &models.Consultant{ID: "c1", ConsultationHours: []string{"8:00 AM to 9:00 AM"}}
	src := &fakeReservations{err: errors.New("store down")}

	r := NewResolver(src)
	_, err := r.AvailableSlots(context.Background(), c, wednesday())
	assert.Error(t, err)
}

func TestSelectableDatesSkipsFullyBooked(t *testing.T) {
	c := &models.Consultant{
		ID:                "c1",
		AvailableDays:     []string{"Monday", "Wednesday", "Friday"},
		ConsultationHours: []string{"8:00 AM to 9:00 AM", "9:00 AM to 10:00 AM"},
	}
	// Fully book the first candidate date (the reference Wednesday).
	src := &fakeReservations{booked: map[string][]string{
		"c1|2025-05-07": {"8:00 AM to 9:00 AM", "9:00 AM to 10:00 AM"},
	}}

	r := NewResolver(src)
	dates, err := r.SelectableDates(context.Background(), c, 14, wednesday())
	require.NoError(t, err)

	for _, d := range dates {
		assert.NotEqual(t, "2025-05-07", d.Format("2006-01-02"), "fully booked date offered")
	}
	assert.NotEmpty(t, dates)
}

func TestMatchSlot(t *testing.T) {
	slots := []string{"8:00 AM to 9:00 AM", "9:00 AM to 10:00 AM"}

	matched, ok := MatchSlot(slots, "8:00 AM")
	require.True(t, ok)
	assert.Equal(t, "8:00 AM to 9:00 AM", matched)

	_, ok = MatchSlot(slots, "11:00 AM")
	assert.False(t, ok)
}
