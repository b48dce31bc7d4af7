// Package xlsx renders the access journal as an Excel workbook.
package xlsx

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

const sheetName = "Journal"

var header = []any{
	"Timestamp", "Actor", "Action", "Resource type", "Resource id", "Resource name", "Details", "IP address", "User agent",
}

type Exporter struct {
	location *time.Location
}

func NewExporter(location *time.Location) *Exporter {
	if location == nil {
		location = time.UTC
	}
	return &Exporter{location: location}
}

func (e *Exporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *Exporter) Export(entries []domain.AuditEntry, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "I1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		row := []any{
			entry.Timestamp.In(e.location).Format("2006-01-02 15:04:05"),
			entry.ActorID,
			string(entry.Action),
			entry.ResourceType,
			entry.ResourceID,
			entry.ResourceName,
			formatDetails(entry.Details),
			entry.IPAddress,
			entry.UserAgent,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "I", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprint(details)
	}
	return string(raw)
}
