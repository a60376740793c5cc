package source

import (
	"bytes"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nes_dashboard/backend/internal/models"
)

// IsXLSX reports whether a source URL names a spreadsheet rather than CSV.
func IsXLSX(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext == ".xlsx" || ext == ".xlsm"
}

// ParseXLSX reads the first sheet of a workbook, using its first row as the
// header.
func ParseXLSX(data []byte) ([]models.RawRow, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyPayload
	}

	header := rows[0]
	out := make([]models.RawRow, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		if blankRow(rec) {
			continue
		}
		row := make(models.RawRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrEmptyPayload
	}
	return out, nil
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
