// Package models defines the domain types shared across the booking engine.
package models

import (
	"strings"
	"time"
)

// Booking request statuses. The engine only ever creates pending requests;
// later status changes belong to the approval flow.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Consultation platforms.
const (
	PlatformOnline   = "Online"
	PlatformInPerson = "In Person"
)

// Transcript speakers.
const (
	SpeakerUser   = "user"
	SpeakerEngine = "engine"
)

// Consultant is a read-only snapshot of a consultant's recurring weekly
// schedule as stored in the consultant catalog.
type Consultant struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Specialty         string   `json:"specialty"`
	HourlyRate        float64  `json:"hourlyRate"`
	AvailableDays     []string `json:"availableDays"`     // weekday names, e.g. "Monday"
	ConsultationHours []string `json:"consultationHours"` // slot labels, e.g. "8:00 AM to 9:00 AM"
}

// AcceptsDay reports whether the consultant takes bookings on the given
// civil weekday name.
func (c *Consultant) AcceptsDay(weekday string) bool {
	for _, d := range c.AvailableDays {
		if strings.EqualFold(d, weekday) {
			return true
		}
	}
	return false
}

// HasSlot reports whether label is one of the consultant's slot labels.
func (c *Consultant) HasSlot(label string) bool {
	for _, s := range c.ConsultationHours {
		if s == label {
			return true
		}
	}
	return false
}

// BookingRequest is the durable record produced by a completed booking
// conversation. The engine never mutates it after creation.
type BookingRequest struct {
	ID             string    `json:"id"`
	ConsultantID   string    `json:"consultantId"`
	ConsultantName string    `json:"consultantName"`
	UserID         string    `json:"userId"`
	FullName       string    `json:"fullName"`
	Date           time.Time `json:"date"`         // calendar date, midnight in the civil zone
	AvailableDay   string    `json:"availableDay"` // weekday name of Date
	Slot           string    `json:"slot"`         // slot label as listed by the consultant
	Platform       string    `json:"platform"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsActive reports whether the request still reserves its slot.
func (b *BookingRequest) IsActive() bool {
	return b.Status != StatusCancelled
}

// Message is one entry of a conversation transcript, consumed by the chat UI.
type Message struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Speaker   string    `json:"speaker"` // SpeakerUser or SpeakerEngine
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeName folds a consultant name for fuzzy lookup: strips a leading
// "Dr." honorific, drops non-alphanumerics and lowercases the rest.
func NormalizeName(name string) string {
	s := strings.TrimSpace(name)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "dr.") {
		s = s[3:]
	} else if strings.HasPrefix(lower, "dr ") {
		s = s[3:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
