package interchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

// AttrPrefix marks an attribute column explicitly.
const AttrPrefix = "attr__"

var (
	partReserved = []string{"part_number", "name", "last_updated", "attributes_json"}
	relReserved  = []string{"rel_id", "parent_part_number", "child_part_number", "qty", "last_updated", "attributes_json"}

	intPattern   = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern = regexp.MustCompile(`^[+-]?(\d+\.\d+|\d+\.|\.\d+)$`)
)

// PartRow is one parsed row of a parts file.
type PartRow struct {
	Row      int
	Input    bom.PartInput
	Warnings []string
}

// RelationshipRow is one parsed row of a relationships file.
type RelationshipRow struct {
	Row      int
	Input    bom.RelationshipInput
	Warnings []string
}

// ImportReport summarizes an import. RowErrors are "Row N: ..." strings.
type ImportReport struct {
	File       string   `json:"file"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	FailedRows int      `json:"failed_rows"`
	RowErrors  []string `json:"row_errors"`
}

// Fail records a failed row.
func (r *ImportReport) Fail(row int, msg string) {
	r.FailedRows++
	r.RowErrors = append(r.RowErrors, fmt.Sprintf("Row %d: %s", row, msg))
}

// ExportOptions controls the exported columns.
type ExportOptions struct {
	// Attributes become one column each, in the given order.
	Attributes []string
	// IncludeAttributesJSON appends an attributes_json column.
	IncludeAttributesJSON bool
}

// ExportReport summarizes an export.
type ExportReport struct {
	File    string   `json:"file"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// ReadParts parses a parts file. The error is non-nil only when the file
// as a whole is unusable (unreadable or missing required columns); row
// problems are returned in rowErrs.
func ReadParts(r io.Reader) (rows []PartRow, rowErrs []string, err error) {
	err = readRows(r, []string{"part_number", "name"}, "parts", func(n int, rec map[string]string) {
		number := strings.TrimSpace(rec["part_number"])
		name := strings.TrimSpace(rec["name"])
		switch {
		case number == "":
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: part_number is required", n))
			return
		case name == "":
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: name is required", n))
			return
		}
		ts, terr := parseTimestamp(rec["last_updated"])
		if terr != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: %s", n, terr))
			return
		}
		attrs, warns := extractAttributes(rec, partReserved)
		rows = append(rows, PartRow{
			Row:      n,
			Input:    bom.PartInput{PartNumber: number, Name: name, Attributes: attrs, LastUpdated: ts},
			Warnings: prefixRow(n, warns),
		})
	})
	return rows, rowErrs, err
}

// ReadRelationships parses a relationships file.
func ReadRelationships(r io.Reader) (rows []RelationshipRow, rowErrs []string, err error) {
	err = readRows(r, []string{"parent_part_number", "child_part_number", "qty"}, "relationships", func(n int, rec map[string]string) {
		parent := strings.TrimSpace(rec["parent_part_number"])
		child := strings.TrimSpace(rec["child_part_number"])
		qty, ok := parseQty(rec["qty"])
		switch {
		case parent == "":
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: parent_part_number is required", n))
			return
		case child == "":
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: child_part_number is required", n))
			return
		case !ok:
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: qty must be numeric", n))
			return
		}
		ts, terr := parseTimestamp(rec["last_updated"])
		if terr != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: %s", n, terr))
			return
		}
		attrs, warns := extractAttributes(rec, relReserved)
		rows = append(rows, RelationshipRow{
			Row: n,
			Input: bom.RelationshipInput{
				Parent:      parent,
				Child:       child,
				Qty:         qty,
				RelID:       strings.TrimSpace(rec["rel_id"]),
				Attributes:  attrs,
				LastUpdated: ts,
			},
			Warnings: prefixRow(n, warns),
		})
	})
	return rows, rowErrs, err
}

func readRows(r io.Reader, required []string, kind string, fn func(row int, rec map[string]string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return errors.New(errors.ErrCodeInvalidFormat, "CSV file is empty")
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "read CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var missing []string
	for _, col := range required {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.New(errors.ErrCodeValidation, "Missing required columns for %s import: %s", kind, strings.Join(missing, ", "))
	}

	for n := 2; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "read CSV row %d", n)
		}
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) && col != "" {
				m[col] = rec[i]
			}
		}
		fn(n, m)
	}
}

// extractAttributes builds attributes from attributes_json first and then
// from every non-reserved, non-empty column, so explicit columns win.
func extractAttributes(rec map[string]string, reserved []string) (bom.Attributes, []string) {
	attrs := bom.Attributes{}
	var warns []string

	if raw := strings.TrimSpace(rec["attributes_json"]); raw != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			if json.Valid([]byte(raw)) {
				warns = append(warns, "attributes_json was not a JSON object and was ignored")
			} else {
				warns = append(warns, "attributes_json was invalid JSON and was ignored")
			}
		} else {
			for k, msg := range obj {
				var v bom.Value
				if err := json.Unmarshal(msg, &v); err != nil {
					warns = append(warns, fmt.Sprintf("attributes_json key '%s' is not a scalar and was ignored", k))
					continue
				}
				attrs[k] = v
			}
		}
	}

	for col, raw := range rec {
		if slices.Contains(reserved, col) || strings.TrimSpace(raw) == "" {
			continue
		}
		key := strings.TrimPrefix(col, AttrPrefix)
		if key == "" {
			continue
		}
		attrs[key] = ParseValue(raw)
	}
	slices.Sort(warns)
	return attrs, warns
}

// ParseValue interprets a CSV cell: "true"/"false" (any case) become
// booleans, integer and decimal literals become numbers, anything else is
// trimmed text.
func ParseValue(raw string) bom.Value {
	text := strings.TrimSpace(raw)
	switch strings.ToLower(text) {
	case "true":
		return bom.Bool(true)
	case "false":
		return bom.Bool(false)
	}
	if intPattern.MatchString(text) || floatPattern.MatchString(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return bom.Number(f)
		}
	}
	return bom.Text(text)
}

func parseQty(raw string) (float64, bool) {
	v, ok := ParseValue(raw).Number()
	return v, ok
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("last_updated must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func prefixRow(n int, msgs []string) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = fmt.Sprintf("Row %d: %s", n, m)
	}
	return out
}

// WriteParts writes parts as CSV and returns the header.
func WriteParts(w io.Writer, parts []bom.Part, opts ExportOptions) ([]string, error) {
	columns := exportColumns([]string{"part_number", "name", "last_updated"}, opts)
	return columns, writeRows(w, columns, len(parts), func(i int) ([]string, error) {
		p := parts[i]
		return exportRow([]string{p.PartNumber, p.Name, formatTime(p.LastUpdated)}, p.Attributes, opts)
	})
}

// WriteRelationships writes relationships as CSV and returns the header.
func WriteRelationships(w io.Writer, rels []bom.Relationship, opts ExportOptions) ([]string, error) {
	columns := exportColumns([]string{"rel_id", "parent_part_number", "child_part_number", "qty", "last_updated"}, opts)
	return columns, writeRows(w, columns, len(rels), func(i int) ([]string, error) {
		r := rels[i]
		fixed := []string{r.RelID, r.Parent, r.Child, strconv.FormatFloat(r.Qty, 'f', -1, 64), formatTime(r.LastUpdated)}
		return exportRow(fixed, r.Attributes, opts)
	})
}

func exportColumns(fixed []string, opts ExportOptions) []string {
	cols := append(slices.Clone(fixed), opts.Attributes...)
	if opts.IncludeAttributesJSON {
		cols = append(cols, "attributes_json")
	}
	return cols
}

func exportRow(fixed []string, attrs bom.Attributes, opts ExportOptions) ([]string, error) {
	row := fixed
	for _, key := range opts.Attributes {
		if v, ok := attrs[key]; ok {
			row = append(row, v.String())
		} else {
			row = append(row, "")
		}
	}
	if opts.IncludeAttributesJSON {
		if attrs == nil {
			attrs = bom.Attributes{}
		}
		data, err := json.Marshal(attrs)
		if err != nil {
			return nil, err
		}
		row = append(row, string(data))
	}
	return row, nil
}

func writeRows(w io.Writer, header []string, n int, row func(int) ([]string, error)) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range n {
		rec, err := row(i)
		if err != nil {
			return err
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Encode renders rows with write into memory, for callers that persist the
// bytes atomically.
func Encode(write func(io.Writer) ([]string, error)) ([]byte, []string, error) {
	var buf bytes.Buffer
	cols, err := write(&buf)
	return buf.Bytes(), cols, err
}
