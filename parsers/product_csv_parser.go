package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"petshop/money"
)

// ParsedProductCSVRecord is one row of a product import sheet.
type ParsedProductCSVRecord struct {
	Line         int
	Name         string
	Description  string
	PriceCents   int64
	ImageURL     string
	Featured     bool
	Stock        int
	CategorySlug string
}

// RowError describes a row that was skipped.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseProductCSV reads a product sheet with the headers
// name, price, category and optionally description, image_url, featured,
// stock. Bad rows are returned as RowErrors; only an unreadable header is
// fatal.
func ParseProductCSV(r io.Reader) ([]ParsedProductCSVRecord, []RowError, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("CSV file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex, err := getColIndex(header, []string{"name", "price", "category"})
	if err != nil {
		return nil, nil, err
	}

	var records []ParsedProductCSVRecord
	var rowErrs []RowError

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
			}
			rowErrs = append(rowErrs, RowError{Line: perr.StartLine, Message: perr.Err.Error()})
			continue
		}
		// Quoted fields may span lines, so ask the reader where the record began.
		line, _ := reader.FieldPos(0)

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		if strings.Join(rec, "") == "" {
			continue
		}

		p := ParsedProductCSVRecord{
			Line:         line,
			Name:         get("name"),
			Description:  get("description"),
			ImageURL:     get("image_url"),
			CategorySlug: get("category"),
		}
		if p.Name == "" || p.CategorySlug == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Message: "name and category are required"})
			continue
		}

		price, err := money.Parse(get("price"))
		if err != nil || price <= 0 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("invalid price %q", get("price"))})
			continue
		}
		p.PriceCents = price

		if s := get("stock"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("invalid stock %q", s)})
				continue
			}
			p.Stock = n
		}

		switch strings.ToLower(get("featured")) {
		case "1", "true", "yes", "y":
			p.Featured = true
		}

		records = append(records, p)
	}

	return records, rowErrs, nil
}
