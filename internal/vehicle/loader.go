package vehicle

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// header aliases accepted by the import, keyed by canonical column
var columnAliases = map[string][]string{
	"title":  {"title", "vehicle", "vehicle title", "name"},
	"stock":  {"stock", "stock number", "stock #", "stock_number"},
	"miles":  {"miles", "mileage", "odometer"},
	"url":    {"url", "link", "listing url", "vdp"},
	"dealer": {"dealer", "dealership", "company"},
}

// ParseCSV reads an inventory CSV with a header row. Rows missing a title,
// stock, miles or url are skipped and counted.
func ParseCSV(r io.Reader) ([]Input, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(rows) < 1 {
		return nil, 0, fmt.Errorf("%w: csv has no header", ErrInvalidInput)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for canon, aliases := range columnAliases {
			for _, a := range aliases {
				if h == a {
					if _, seen := cols[canon]; !seen {
						cols[canon] = i
					}
				}
			}
		}
	}
	for _, need := range []string{"title", "stock", "miles", "url"} {
		if _, ok := cols[need]; !ok {
			return nil, 0, fmt.Errorf("%w: csv header missing %q column", ErrInvalidInput, need)
		}
	}

	get := func(row []string, name string) string {
		if idx, ok := cols[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	out := []Input{}
	skipped := 0
	for _, row := range rows[1:] {
		in := Input{
			Title:  get(row, "title"),
			Stock:  get(row, "stock"),
			Miles:  get(row, "miles"),
			URL:    get(row, "url"),
			Dealer: get(row, "dealer"),
		}
		if in.Title == "" && in.Stock == "" && in.Miles == "" && in.URL == "" {
			continue
		}
		if in.Title == "" || in.Stock == "" || in.Miles == "" || in.URL == "" {
			skipped++
			continue
		}
		out = append(out, in)
	}
	return out, skipped, nil
}

// LoadCSVFile parses an inventory CSV from disk.
func LoadCSVFile(path string) ([]Input, int, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer fp.Close()
	return ParseCSV(fp)
}
