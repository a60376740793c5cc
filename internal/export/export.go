// Package export flattens query results into labelled rows for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nes_dashboard/backend/internal/models"
)

const missing = "N/A"

type Table struct {
	Sheet   string     `json:"sheet"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

var ticketHeaders = []string{
	"REFID MCMC", "NADI", "State", "TP", "DUSP", "Phase", "Maintenance Type",
	"Description", "Status", "Priority", "Registered Date", "Updated Date",
}

// Tickets flattens tickets using their display labels. Dates are shown as
// calendar days in loc, or N/A when missing.
func Tickets(tickets []models.Ticket, loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}
	t := Table{Sheet: "Maintenance Data", Headers: ticketHeaders, Rows: make([][]string, 0, len(tickets))}
	for _, tk := range tickets {
		t.Rows = append(t.Rows, []string{
			tk.ReferenceID, tk.Nadi, tk.State, tk.TP, tk.DUSP, tk.Phase, tk.MaintenanceType,
			tk.Title, tk.Status, tk.Priority, day(tk.RegisteredAt, loc), day(tk.UpdatedAt, loc),
		})
	}
	return t
}

var participationHeaders = []string{
	"Participant ID", "Member ID", "Event ID", "Program", "Category", "Organization", "SSO",
	"NADI", "State", "Region", "Membership Status", "Target Status", "Age Group", "Event Date",
	"Attendance Rate %", "Target Achievement %", "Male", "Female",
}

func Participation(rows []models.Participation, loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}
	t := Table{Sheet: "NES Participation", Headers: participationHeaders, Rows: make([][]string, 0, len(rows))}
	for _, p := range rows {
		t.Rows = append(t.Rows, []string{
			p.ParticipantID, p.MemberID, p.EventID, p.ProgramName, p.CategoryName, p.OrganizationName, p.SSOName,
			p.NadiName, p.StateName, p.RegionName, p.MembershipStatus, p.TargetStatus, p.AgeGroup, day(p.EventAt, loc),
			number(p.AttendanceRate), number(p.TargetAchievement), number(p.MaleCount), number(p.FemaleCount),
		})
	}
	return t
}

// Crosstab lays a matrix out with a trailing total column and total row.
func Crosstab(x models.Crosstab, rowLabel string) Table {
	t := Table{Sheet: "Crosstab", Headers: append(append([]string{rowLabel}, x.Cols...), "Total")}
	for i, r := range x.Rows {
		line := []string{r}
		for _, n := range x.Cells[i] {
			line = append(line, strconv.Itoa(n))
		}
		t.Rows = append(t.Rows, append(line, strconv.Itoa(x.RowTotals[i])))
	}
	total := []string{"Total"}
	for _, n := range x.ColTotals {
		total = append(total, strconv.Itoa(n))
	}
	t.Rows = append(t.Rows, append(total, strconv.Itoa(x.Total)))
	return t
}

func day(d models.Date, loc *time.Location) string {
	if !d.Valid {
		return missing
	}
	return d.Time.In(loc).Format("2006-01-02")
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, sheet, 1, t.Headers); err != nil {
		return err
	}
	for i, r := range t.Rows {
		if err := setRow(f, sheet, i+2, r); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}
