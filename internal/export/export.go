// Package export renders booking requests as an Excel workbook for the
// clinic's back office.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/keanulaw/NeoCare-App/internal/models"
	"github.com/keanulaw/NeoCare-App/internal/store"
)

const sheetName = "Bookings"

var headerColumns = []string{
	"ID", "Consultant", "Patient", "User ID", "Date", "Day", "Slot", "Platform", "Status", "Created At",
}

// WriteBookings writes the bookings as a single-sheet workbook to w.
func WriteBookings(w io.Writer, bookings []models.BookingRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	if err := writeHeader(f); err != nil {
		return err
	}
	for i, b := range bookings {
		if err := writeRow(f, i+2, &b); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeHeader(f *excelize.File) error {
	for i, col := range headerColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(headerColumns), 1)
		_ = f.SetCellStyle(sheetName, startCell, endCell, style)
	}
	return nil
}

func writeRow(f *excelize.File, row int, b *models.BookingRequest) error {
	values := []interface{}{
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
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, val); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}
	return nil
}
