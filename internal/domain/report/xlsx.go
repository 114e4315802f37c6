package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	patientsSheet = "Patients"
	summarySheet  = "Summary"
)

var patientHeader = []string{
	"Patient",
	"Patient ID",
	"Assigned",
	"Total Doses",
	"Doses (7 days)",
	"Missed (7 days)",
	"Last Dose",
	"Adherence %",
	"Critical",
}

var columnWidths = []float64{28, 38, 20, 12, 14, 15, 20, 13, 10}

// WriteXLSX renders the report as a workbook with a patient sheet and a
// summary sheet.
func WriteXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(patientsSheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	criticalStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E1"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("creating critical style: %w", err)
	}

	for col, h := range patientHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(patientsSheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(patientsSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("styling header %s: %w", cell, err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(patientsSheet, colName, colName, columnWidths[col]); err != nil {
			return nil, err
		}
	}

	for i, p := range r.Patients {
		row := i + 2
		lastDose := ""
		if p.LastDoseAt != nil {
			lastDose = p.LastDoseAt.UTC().Format(time.RFC3339)
		}
		critical := "no"
		if p.Critical {
			critical = "yes"
		}
		values := []interface{}{
			p.PatientName,
			p.PatientID.String(),
			p.AssignedAt.UTC().Format(time.RFC3339),
			p.TotalDoses,
			p.DosesLast7Days,
			p.MissedDoses,
			lastDose,
			p.AdherenceRate,
			critical,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(patientsSheet, start, &values); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", row, err)
		}
		if p.Critical {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			if err := f.SetCellStyle(patientsSheet, start, end, criticalStyle); err != nil {
				return nil, fmt.Errorf("styling row %d: %w", row, err)
			}
		}
	}

	summary := [][]interface{}{
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Patients", r.PatientCount},
		{"Average adherence %", r.AverageAdherence},
		{"Critical patients (< 50%)", r.CriticalCount},
		{"Adherence method", r.Method},
	}
	for i, kv := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := kv
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
