package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// columnAliases maps each canonical field to the header spellings seen in
// the wild, most notably the verbatim Google Form column titles. Matching
// is case-insensitive; resolution happens once per stream.
var columnAliases = map[string][]string{
	"address": {
		"address",
		"stellar address",
		"your stellar address (public key)",
		"wallet address",
		"public key",
	},
	"contact": {
		"contact",
		"contact info",
		"contact information",
		"email",
	},
	"project_name": {
		"project",
		"project name",
		"open source project name",
	},
	"project_url": {
		"url",
		"project url",
		"project repository url",
		"repository",
	},
	"submitted_at": {
		"timestamp",
		"submitted at",
		"submission time",
		"date",
	},
}

// timestampLayouts are tried in order; an unparseable timestamp degrades to
// the zero time rather than failing the row.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// DroppedRow records a data row that was skipped instead of normalized.
type DroppedRow struct {
	Row    int
	Reason string
}

// NormalizeSubmissions parses a tabular export with a header row into
// canonical submissions, in input order. Columns may appear in any order
// and unknown columns are ignored. A row without an address is dropped and
// reported, never fatal. A UTF-8 byte order mark is tolerated.
func NormalizeSubmissions(r io.Reader) ([]Submission, []DroppedRow, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, &MalformedInputError{Row: 0, Field: "header", Err: err}
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var submissions []Submission
	var dropped []DroppedRow

	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, &MalformedInputError{Row: row, Field: "row", Err: err}
		}

		address := field(record, columns["address"])
		if address == "" {
			dropped = append(dropped, DroppedRow{Row: row, Reason: "missing address"})
			continue
		}

		submissions = append(submissions, Submission{
			Address:     address,
			Contact:     field(record, columns["contact"]),
			ProjectName: field(record, columns["project_name"]),
			ProjectURL:  field(record, columns["project_url"]),
			SubmittedAt: parseTimestamp(field(record, columns["submitted_at"])),
		})
	}

	return submissions, dropped, nil
}

// resolveColumns maps canonical field names to header positions.
// Only the address column is mandatory.
func resolveColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	columns := make(map[string]int, len(columnAliases))
	for fieldName, aliases := range columnAliases {
		columns[fieldName] = -1
		for _, alias := range aliases {
			for i, h := range normalized {
				if h == alias {
					columns[fieldName] = i
					break
				}
			}
			if columns[fieldName] >= 0 {
				break
			}
		}
	}

	if columns["address"] < 0 {
		return nil, &MalformedInputError{Row: 0, Field: "address", Err: errors.New("column not found in header")}
	}
	return columns, nil
}

// field returns the trimmed cell at idx, or "" when the column is absent or
// the row is short.
func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
