// Package store persists consultants, booking requests and conversation
// transcripts. The engine only ever talks to it through narrow interfaces
// declared by the consuming packages.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/keanulaw/NeoCare-App/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateBooking is returned when an insert would violate the
	// one-active-booking-per-slot invariant.
	ErrDuplicateBooking = errors.New("slot already booked")
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
	loc    *time.Location
	logger *zerolog.Logger
}

// New opens (creating if needed) the database at path. Dates are
// interpreted in loc, the application's fixed civil zone.
func New(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	instance := &DB{DB: db, loc: loc, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS consultants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			specialty TEXT NOT NULL DEFAULT '',
			hourly_rate REAL NOT NULL DEFAULT 0,
			available_days TEXT NOT NULL,
			consultation_hours TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS booking_requests (
			id TEXT PRIMARY KEY,
			consultant_id TEXT NOT NULL,
			consultant_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			full_name TEXT NOT NULL,
			date TEXT NOT NULL,
			available_day TEXT NOT NULL,
			slot TEXT NOT NULL,
			platform TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		)`,
		// Invariant: at most one non-cancelled request per (consultant,
		// date, slot). Rejected requests still hold the slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_booking_slot_unique
			ON booking_requests(consultant_id, date, slot)
			WHERE status != 'cancelled'`,
		`CREATE INDEX IF NOT EXISTS idx_booking_user ON booking_requests(user_id)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_messages(user_id, id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// DateKey renders a calendar date the way booking rows store it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// UpsertConsultant creates or updates a consultant snapshot.
func (db *DB) UpsertConsultant(ctx context.Context, c *models.Consultant) error {
	days, err := json.Marshal(c.AvailableDays)
	if err != nil {
		return err
	}
	hours, err := json.Marshal(c.ConsultationHours)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO consultants (id, name, specialty, hourly_rate, available_days, consultation_hours, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			hourly_rate = excluded.hourly_rate,
			available_days = excluded.available_days,
			consultation_hours = excluded.consultation_hours,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Specialty, c.HourlyRate, string(days), string(hours), time.Now(),
	)
	return err
}

// GetConsultant returns a consultant by id.
func (db *DB) GetConsultant(ctx context.Context, id string) (*models.Consultant, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, specialty, hourly_rate, available_days, consultation_hours
		FROM consultants WHERE id = ?`, id)
	return scanConsultant(row)
}

// GetConsultantByName returns a consultant by fuzzy name match: exact
// normalized equality first, then substring containment either way.
func (db *DB) GetConsultantByName(ctx context.Context, name string) (*models.Consultant, error) {
	all, err := db.ListConsultants(ctx)
	if err != nil {
		return nil, err
	}

	target := models.NormalizeName(name)
	for _, c := range all {
		if models.NormalizeName(c.Name) == target {
			return c, nil
		}
	}
	for _, c := range all {
		cand := models.NormalizeName(c.Name)
		if cand != "" && target != "" &&
			(strings.Contains(cand, target) || strings.Contains(target, cand)) {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// ListConsultants returns all consultants ordered by name.
func (db *DB) ListConsultants(ctx context.Context) ([]*models.Consultant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, specialty, hourly_rate, available_days, consultation_hours
		FROM consultants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Consultant
	for rows.Next() {
		c, err := scanConsultant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BookedSlots returns the slot labels reserved by non-cancelled booking
// requests for the consultant on the given date.
func (db *DB) BookedSlots(ctx context.Context, consultantID string, date time.Time) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slot FROM booking_requests
		WHERE consultant_id = ? AND date = ? AND status != ?
		ORDER BY slot`,
		consultantID, DateKey(date), models.StatusCancelled,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// CreateBookingRequest persists a booking request. Returns
// ErrDuplicateBooking when a non-cancelled request already holds the same
// (consultant, date, slot); the unique index makes the check atomic.
func (db *DB) CreateBookingRequest(ctx context.Context, b *models.BookingRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO booking_requests
			(id, consultant_id, consultant_name, user_id, full_name, date, available_day, slot, platform, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ConsultantID, b.ConsultantName, b.UserID, b.FullName,
		DateKey(b.Date), b.AvailableDay, b.Slot, b.Platform, b.Status, b.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateBooking
		}
		return err
	}
	return nil
}

// ListBookingRequests returns all booking requests, newest first.
func (db *DB) ListBookingRequests(ctx context.Context) ([]models.BookingRequest, error) {
	return db.queryBookings(ctx, `
		SELECT id, consultant_id, consultant_name, user_id, full_name, date, available_day, slot, platform, status, created_at
		FROM booking_requests ORDER BY created_at DESC`)
}

// ListBookingRequestsByUser returns a user's booking requests, newest first.
func (db *DB) ListBookingRequestsByUser(ctx context.Context, userID string) ([]models.BookingRequest, error) {
	return db.queryBookings(ctx, `
		SELECT id, consultant_id, consultant_name, user_id, full_name, date, available_day, slot, platform, status, created_at
		FROM booking_requests WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.BookingRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BookingRequest
	for rows.Next() {
		var b models.BookingRequest
		var dateStr string
		if err := rows.Scan(&b.ID, &b.ConsultantID, &b.ConsultantName, &b.UserID, &b.FullName,
			&dateStr, &b.AvailableDay, &b.Slot, &b.Platform, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		date, err := time.ParseInLocation("2006-01-02", dateStr, db.loc)
		if err != nil {
			return nil, fmt.Errorf("parse booking date %q: %w", dateStr, err)
		}
		b.Date = date
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveMessage appends a transcript entry.
func (db *DB) SaveMessage(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO chat_messages (user_id, speaker, text, created_at) VALUES (?, ?, ?, ?)`,
		m.UserID, m.Speaker, m.Text, m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

// Transcript returns the user's conversation, oldest first, capped at limit.
func (db *DB) Transcript(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, speaker, text, created_at FROM chat_messages
		WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Speaker, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanConsultant(row interface{ Scan(...any) error }) (*models.Consultant, error) {
	var c models.Consultant
	var days, hours string
	err := row.Scan(&c.ID, &c.Name, &c.Specialty, &c.HourlyRate, &days, &hours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &c.AvailableDays); err != nil {
		return nil, fmt.Errorf("decode available_days: %w", err)
	}
	if err := json.Unmarshal([]byte(hours), &c.ConsultationHours); err != nil {
		return nil, fmt.Errorf("decode consultation_hours: %w", err)
	}
	return &c, nil
}
