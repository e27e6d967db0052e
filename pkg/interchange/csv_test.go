package interchange

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want bom.Value
	}{
		{"TRUE", bom.Bool(true)},
		{" false ", bom.Bool(false)},
		{"42", bom.Number(42)},
		{"-3.5", bom.Number(-3.5)},
		{".25", bom.Number(0.25)},
		{"7.", bom.Number(7)},
		{"1e3", bom.Text("1e3")},
		{"steel", bom.Text("steel")},
		{`{"a":1}`, bom.Text(`{"a":1}`)},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.in); !got.Equal(tt.want) {
			t.Errorf("ParseValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadParts(t *testing.T) {
	in := strings.Join([]string{
		"part_number,name,last_updated,attr__unit_weight,color,attributes_json",
		`P1,Frame,2024-05-01T12:00:00Z,2.5,red,"{""finish"":""matte"",""color"":""blue""}"`,
		",Nameless,,,,",
		"P2,,,,,",
		"P3,Bolt,yesterday,,,",
		`P4,Nut,,,,"[1,2]"`,
		`P5,Washer,,,,"{""nested"":{""a"":1}}"`,
	}, "\n")

	rows, rowErrs, err := ReadParts(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadParts: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	p1 := rows[0]
	if p1.Row != 2 || p1.Input.PartNumber != "P1" || !p1.Input.LastUpdated.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("row 2 = %+v", p1)
	}
	want := bom.Attributes{"unit_weight": bom.Number(2.5), "color": bom.Text("red"), "finish": bom.Text("matte")}
	if !p1.Input.Attributes.Equal(want) {
		t.Errorf("attributes = %v, want %v", p1.Input.Attributes, want)
	}

	wantErrs := []string{
		"Row 3: part_number is required",
		"Row 4: name is required",
		"Row 5: last_updated must be an RFC 3339 timestamp",
	}
	if strings.Join(rowErrs, "|") != strings.Join(wantErrs, "|") {
		t.Errorf("row errors = %q, want %q", rowErrs, wantErrs)
	}
	if w := rows[1].Warnings; len(w) != 1 || w[0] != "Row 6: attributes_json was not a JSON object and was ignored" {
		t.Errorf("row 6 warnings = %q", w)
	}
	if w := rows[2].Warnings; len(w) != 1 || w[0] != "Row 7: attributes_json key 'nested' is not a scalar and was ignored" {
		t.Errorf("row 7 warnings = %q", w)
	}
}

func TestReadMissingColumns(t *testing.T) {
	_, _, err := ReadRelationships(strings.NewReader("parent_part_number,quantity\nA,1\n"))
	if !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
	if got := errors.UserMessage(err); got != "Missing required columns for relationships import: child_part_number, qty" {
		t.Errorf("message = %q", got)
	}

	if _, _, err := ReadParts(strings.NewReader("")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("empty file error = %v, want invalid format", err)
	}
}

func TestReadRelationships(t *testing.T) {
	in := "\ufeffrel_id,parent_part_number,child_part_number,qty,torque\n" +
		"rel_1,BIKE,WHEEL,2,12.5\n" +
		",BIKE,FRAME,lots,\n" +
		",BIKE,,1,\n"
	rows, rowErrs, err := ReadRelationships(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	r := rows[0].Input
	if r.RelID != "rel_1" || r.Parent != "BIKE" || r.Child != "WHEEL" || r.Qty != 2 {
		t.Errorf("input = %+v", r)
	}
	if v, ok := r.Attributes["torque"].Number(); !ok || v != 12.5 {
		t.Errorf("torque = %v", r.Attributes["torque"])
	}
	if len(rowErrs) != 2 || rowErrs[0] != "Row 3: qty must be numeric" || rowErrs[1] != "Row 4: child_part_number is required" {
		t.Errorf("row errors = %q", rowErrs)
	}
}

func TestWriteParts(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	parts := []bom.Part{
		{PartNumber: "P1", Name: "Frame, large", Attributes: bom.Attributes{"unit_weight": bom.Number(2.5), "painted": bom.Bool(true)}, LastUpdated: ts},
		{PartNumber: "P2", Name: "Bolt"},
	}
	var buf bytes.Buffer
	cols, err := WriteParts(&buf, parts, ExportOptions{Attributes: []string{"unit_weight"}, IncludeAttributesJSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cols, ",") != "part_number,name,last_updated,unit_weight,attributes_json" {
		t.Errorf("columns = %v", cols)
	}
	want := "part_number,name,last_updated,unit_weight,attributes_json\n" +
		`P1,"Frame, large",2024-05-01T12:00:00Z,2.5,"{""painted"":true,""unit_weight"":2.5}"` + "\n" +
		"P2,Bolt,,,{}\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRelationshipsRoundTrip(t *testing.T) {
	rels := []bom.Relationship{
		{RelID: "rel_a", Parent: "BIKE", Child: "WHEEL", Qty: 0.5, Attributes: bom.Attributes{"side": bom.Text("front")}},
	}
	data, _, err := Encode(func(w io.Writer) ([]string, error) {
		return WriteRelationships(w, rels, ExportOptions{IncludeAttributesJSON: true})
	})
	if err != nil {
		t.Fatal(err)
	}
	rows, rowErrs, err := ReadRelationships(bytes.NewReader(data))
	if err != nil || len(rowErrs) != 0 || len(rows) != 1 {
		t.Fatalf("rows=%v errs=%v err=%v", rows, rowErrs, err)
	}
	got := rows[0].Input
	if got.RelID != "rel_a" || got.Qty != 0.5 || !got.Attributes.Equal(rels[0].Attributes) {
		t.Errorf("round trip = %+v", got)
	}
}
