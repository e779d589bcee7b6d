// Package ingest loads source confirmation rows from CSV or XLSX files. It
// writes only source columns; extraction and validation columns are owned by
// the pipeline.
package ingest

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/confirm-cli/internal/model"
)

// ReadCSV reads a header-led CSV file into source rows.
func ReadCSV(path string) ([]model.SourceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("ingest: csv file is empty")
	}

	return ParseRows(records[0], records[1:])
}

// ReadXLSX reads the first sheet of an XLSX file into source rows.
func ReadXLSX(path string) ([]model.SourceRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx file has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: xlsx sheet is empty")
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	return ParseRows(rows[0], rows[1:])
}

// ParseRows maps a header row plus data rows onto source rows. Header names
// are matched case-insensitively against the store's source column names;
// unknown columns are ignored so exports with extra columns import cleanly.
func ParseRows(header []string, rows [][]string) ([]model.SourceRow, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for _, required := range []string{"currency", "settlement_amount", "buy_sell", "isin", "settlement_date", "ssi"} {
		if _, ok := index[required]; !ok {
			return nil, eris.Errorf("ingest: missing column %q in header", required)
		}
	}

	out := make([]model.SourceRow, 0, len(rows))
	for i, row := range rows {
		amount, err := parseAmount(cellAt(row, index["settlement_amount"]))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: row %d", i+2)
		}
		out = append(out, model.SourceRow{
			Currency:         textAt(row, index["currency"]),
			SettlementAmount: amount,
			BuySell:          textAt(row, index["buy_sell"]),
			ISIN:             textAt(row, index["isin"]),
			SettlementDate:   textAt(row, index["settlement_date"]),
			SSI:              textAt(row, index["ssi"]),
		})
	}
	return out, nil
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func textAt(row []string, i int) *string {
	v := cellAt(row, i)
	if v == "" {
		return nil
	}
	return &v
}

// parseAmount accepts upstream amount formats: thousands separators are
// stripped and parentheses mark a negative value.
func parseAmount(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}

	negative := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		negative = true
		raw = raw[1 : len(raw)-1]
	}
	raw = strings.ReplaceAll(raw, ",", "")

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse settlement_amount %q", raw)
	}
	if negative {
		v = -v
	}
	return &v, nil
}
