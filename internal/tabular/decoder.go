// Package tabular decodes the comma-delimited, quote-aware text payloads returned
// by marketplace export downloads into header-keyed records.
package tabular

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type decodeState int

const (
	stateUnquoted decodeState = iota
	stateQuoted
)

const (
	fieldSeparator = ','
	quoteChar      = '"'
)

// Decode parses text into records keyed by the trimmed header row.
// Header-only or empty input yields an empty slice.
func Decode(text string) []Record {
	rows := splitRows(text)
	if len(rows) < 2 {
		return []Record{}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, zipRow(header, row))
	}
	return records
}

// DecodeReader reads the full payload from r, strips a leading UTF-8 byte order
// mark if present, and decodes it.
func DecodeReader(r io.Reader) ([]Record, error) {
	b, err := io.ReadAll(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("read tabular payload: %w", err)
	}
	return Decode(string(b)), nil
}

// splitRows runs the two-state scanner over text and returns the raw rows with
// blank rows already dropped.
func splitRows(text string) [][]string {
	var (
		rows  [][]string
		row   []string
		field strings.Builder
		state = stateUnquoted
		dirty bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		if !isBlank(row) {
			rows = append(rows, row)
		}
		row = nil
		dirty = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if state == stateQuoted {
			if c == quoteChar {
				if i+1 < len(text) && text[i+1] == quoteChar {
					field.WriteByte(quoteChar)
					i++
					continue
				}
				state = stateUnquoted
				continue
			}
			field.WriteByte(c)
			continue
		}

		switch c {
		case quoteChar:
			state = stateQuoted
			dirty = true
		case fieldSeparator:
			endField()
			dirty = true
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
				endRow()
				continue
			}
			field.WriteByte(c)
			dirty = true
		case '\n':
			endRow()
		default:
			field.WriteByte(c)
			dirty = true
		}
	}

	if dirty || field.Len() > 0 {
		endRow()
	}
	return rows
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func zipRow(header, row []string) Record {
	rec := Record{
		keys:   make([]string, 0, len(header)),
		values: make(map[string]string, len(header)),
	}
	for i, key := range header {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		rec.set(key, value)
	}
	return rec
}
