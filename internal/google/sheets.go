// Package google mirrors booking requests into a Google Sheet the clinic
// staff work from. The sync is best effort; the sheet is a view, not the
// source of truth.
package google

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/keanulaw/NeoCare-App/internal/events"
	"github.com/keanulaw/NeoCare-App/internal/models"
	"github.com/keanulaw/NeoCare-App/internal/store"
)

// SheetsService appends booking rows to a configured spreadsheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger
}

// NewSheetsService authenticates with a service-account credentials file
// and targets the given spreadsheet.
func NewSheetsService(ctx context.Context, credentialsPath, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

// AppendBooking appends one booking row.
func (s *SheetsService) AppendBooking(ctx context.Context, b *models.BookingRequest) error {
	values := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(b)}}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:J", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %s: %w", b.ID, err)
	}
	return nil
}

// SyncAll appends every non-cancelled booking. Used for manual re-syncs
// after the sheet has been cleared.
func (s *SheetsService) SyncAll(ctx context.Context, bookings []models.BookingRequest) error {
	active := s.filterActiveBookings(bookings)
	if len(active) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(active))
	for i := range active {
		rows = append(rows, bookingRowValues(&active[i]))
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:J", &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sync %d bookings: %w", len(active), err)
	}

	s.logger.Info().Int("count", len(active)).Msg("bookings synced to sheet")
	return nil
}

// Subscribe wires the service to booking creation events on the bus.
func (s *SheetsService) Subscribe(ctx context.Context, bus *events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, func(e events.Event) error {
		var b models.BookingRequest
		if err := e.Decode(&b); err != nil {
			s.logger.Warn().Err(err).Msg("decode booking event")
			return err
		}
		if err := s.AppendBooking(ctx, &b); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("sheet append failed")
			return err
		}
		return nil
	})
}

func (s *SheetsService) filterActiveBookings(bookings []models.BookingRequest) []models.BookingRequest {
	active := make([]models.BookingRequest, 0, len(bookings))
	for _, b := range bookings {
		if b.IsActive() {
			active = append(active, b)
		}
	}
	return active
}

func bookingRowValues(b *models.BookingRequest) []interface{} {
	return []interface{}{
		b.ID,
		b.ConsultantName,
		b.FullName,
		b.UserID,
		store.DateKey(b.Date),
		b.AvailableDay,
		b.Slot,
		b.Platform,
		b.Status,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
