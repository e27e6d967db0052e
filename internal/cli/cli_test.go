package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
)

// workspace is a directory holding a bom.toml with file storage.
type workspace struct {
	t      *testing.T
	dir    string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bom.toml")
	content := `[storage]
backend = "file"
path = "data"

[cache]
backend = "file"
dir = "cache"

[log]
level = "error"
`
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return &workspace{t: t, dir: dir, config: cfg}
}

// run executes the root command with a fresh CLI and returns its output.
func (w *workspace) run(args ...string) (string, error) {
	w.t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	c := New(io.Discard, log.ErrorLevel)
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", w.config}, args...))
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.Execute()
	return buf.String(), err
}

func (w *workspace) mustRun(args ...string) string {
	w.t.Helper()
	out, err := w.run(args...)
	if err != nil {
		w.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

type envelope struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Code     string          `json:"code"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, out)
	}
	return env
}

func (w *workspace) seedBike() {
	w.mustRun("part", "add", "BIKE", "--name", "Bike")
	w.mustRun("part", "add", "WHEEL", "--name", "Wheel", "-a", "unit_weight=2")
	w.mustRun("part", "add", "SPOKE", "--name", "Spoke", "-a", "unit_weight=0.1")
	w.mustRun("rel", "set", "BIKE", "WHEEL", "-q", "2")
	w.mustRun("rel", "set", "WHEEL", "SPOKE", "-q", "32")
}

func TestPartCommands(t *testing.T) {
	w := newWorkspace(t)
	out := w.mustRun("part", "add", "BIKE", "--name", "Bike", "-a", "color=red")
	if !strings.Contains(out, "Created part BIKE") {
		t.Errorf("add output = %q", out)
	}

	out = w.mustRun("part", "set", "BIKE", "-a", "mass=12.5")
	if !strings.Contains(out, "Updated part BIKE") {
		t.Errorf("set output = %q", out)
	}

	env := decodeEnvelope(t, w.mustRun("--json", "part", "get", "BIKE"))
	var p bom.Part
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Bike" {
		t.Errorf("name = %q, want name kept without --name", p.Name)
	}
	if v, _ := p.Attributes["mass"].Number(); v != 12.5 {
		t.Errorf("mass = %v, want 12.5", p.Attributes["mass"])
	}
	if p.Attributes["color"].String() != "red" {
		t.Errorf("color = %v, want merged attribute kept", p.Attributes["color"])
	}

	out = w.mustRun("part", "list", "bi")
	if !strings.Contains(out, "BIKE") {
		t.Errorf("list output = %q", out)
	}
}

func TestFailureIsReported(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run("--json", "part", "get", "NOPE")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	env := decodeEnvelope(t, out)
	if env.OK || env.Code != "NOT_FOUND" || len(env.Errors) != 1 {
		t.Errorf("envelope = %+v", env)
	}

	w.mustRun("part", "add", "A", "--name", "A")
	w.mustRun("part", "add", "B", "--name", "B")
	w.mustRun("rel", "set", "A", "B")
	out, err = w.run("rel", "set", "B", "A")
	if !errors.Is(err, ErrReported) {
		t.Fatalf("err = %v, want ErrReported", err)
	}
	if !strings.Contains(out, "Cycle detected: B -> A -> B") {
		t.Errorf("cycle output = %q", out)
	}
}

func TestRollupCommands(t *testing.T) {
	w := newWorkspace(t)
	w.seedBike()

	env := decodeEnvelope(t, w.mustRun("--json", "rollup", "weight", "BIKE"))
	var res struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	// WHEEL overrides its spokes: 2 wheels × 2.
	if res.Total != 4 {
		t.Errorf("weight total = %v, want 4", res.Total)
	}

	env = decodeEnvelope(t, w.mustRun("--json", "rollup", "numeric", "BIKE", "--key", "unit_weight", "--exclude-root"))
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	// 2×2 + 2×32×0.1
	if want := 4 + 6.4; res.Total < want-1e-9 || res.Total > want+1e-9 {
		t.Errorf("numeric total = %v, want %v", res.Total, want)
	}
	if len(env.Warnings) != 0 {
		t.Errorf("warnings = %v, want none with root excluded", env.Warnings)
	}

	env = decodeEnvelope(t, w.mustRun("--json", "rollup", "numeric", "BIKE", "--key", "unit_weight"))
	want := []string{"Part 'BIKE' is missing attribute 'unit_weight'"}
	if len(env.Warnings) != 1 || env.Warnings[0] != want[0] {
		t.Errorf("warnings = %v, want %v", env.Warnings, want)
	}

	out := w.mustRun("rollup", "weight", "BIKE", "--breakdown")
	if !strings.Contains(out, "Weight of BIKE: 4") {
		t.Errorf("weight output = %q", out)
	}
}

func TestNumericRollupCountsRootByDefault(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun("part", "add", "A", "--name", "Assembly", "-a", "weight_kg=10")
	w.mustRun("part", "add", "B", "--name", "Bracket", "-a", "weight_kg=2")
	w.mustRun("rel", "set", "A", "B", "-q", "2")

	tests := []struct {
		args        []string
		want        float64
		includeRoot bool
	}{
		{nil, 14, true},
		{[]string{"--exclude-root"}, 4, false},
	}
	for _, tt := range tests {
		args := append([]string{"--json", "rollup", "numeric", "A", "--key", "weight_kg"}, tt.args...)
		env := decodeEnvelope(t, w.mustRun(args...))
		var res struct {
			Total       float64 `json:"total"`
			IncludeRoot bool    `json:"include_root"`
		}
		if err := json.Unmarshal(env.Data, &res); err != nil {
			t.Fatal(err)
		}
		if res.Total != tt.want || res.IncludeRoot != tt.includeRoot {
			t.Errorf("%v: total=%v include_root=%v, want %v/%v", tt.args, res.Total, res.IncludeRoot, tt.want, tt.includeRoot)
		}
	}
}

func TestSnapshotAndDiffCommands(t *testing.T) {
	w := newWorkspace(t)
	w.seedBike()

	snapID := func(out string) (string, bool) {
		t.Helper()
		env := decodeEnvelope(t, out)
		var cr struct {
			Snapshot     bom.Snapshot `json:"snapshot"`
			Deduplicated bool         `json:"deduplicated"`
		}
		if err := json.Unmarshal(env.Data, &cr); err != nil {
			t.Fatal(err)
		}
		return cr.Snapshot.ID, cr.Deduplicated
	}

	a, dup := snapID(w.mustRun("--json", "snapshot", "create", "BIKE", "-l", "v1"))
	if dup {
		t.Fatal("first snapshot reported as deduplicated")
	}
	same, dup := snapID(w.mustRun("--json", "snapshot", "create", "BIKE"))
	if !dup || same != a {
		t.Errorf("second capture = %s (dedup %v), want %s deduplicated", same, dup, a)
	}

	w.mustRun("part", "attrs", "WHEEL", "-a", "unit_weight=2.5")
	b, _ := snapID(w.mustRun("--json", "snapshot", "create", "BIKE", "-l", "v2"))
	if b == a {
		t.Fatal("changed content produced the same snapshot")
	}

	out := w.mustRun("snapshot", "list", "BIKE")
	if !strings.Contains(out, a) || !strings.Contains(out, b) {
		t.Errorf("list output = %q", out)
	}

	out = w.mustRun("diff", a, b)
	if !strings.Contains(out, "WHEEL") || !strings.Contains(out, "unit_weight 2 → 2.5") {
		t.Errorf("diff output = %q", out)
	}

	if _, err := w.run("diff", a); err == nil {
		t.Error("diff with one argument should fail")
	}
}

func TestImportExportCommands(t *testing.T) {
	w := newWorkspace(t)
	parts := filepath.Join(w.dir, "parts.csv")
	rels := filepath.Join(w.dir, "rels.csv")
	if err := os.WriteFile(parts, []byte("part_number,name,attr__unit_weight\nBIKE,Bike,\nWHEEL,Wheel,2\n,Broken,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rels, []byte("parent_part_number,child_part_number,qty\nBIKE,WHEEL,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := w.mustRun("import", "parts", parts)
	if !strings.Contains(out, "2 created") || !strings.Contains(out, "1 failed") {
		t.Errorf("import parts output = %q", out)
	}
	w.mustRun("import", "rels", rels)

	dest := filepath.Join(w.dir, "out", "rels.csv")
	w.mustRun("export", "rels", dest)
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "BIKE,WHEEL,2,") {
		t.Errorf("exported = %q", data)
	}
}

func TestCacheCommands(t *testing.T) {
	w := newWorkspace(t)
	out := strings.TrimSpace(w.mustRun("cache", "path"))
	if want := filepath.Join(w.dir, "cache"); out != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}

	w.seedBike()
	w.mustRun("rollup", "weight", "BIKE")
	out = w.mustRun("cache", "clear")
	if !strings.Contains(out, "Cleared ") || strings.Contains(out, "Cleared 0 ") {
		t.Errorf("clear output = %q", out)
	}
}

func TestSnapshotPickerModel(t *testing.T) {
	snaps := []bom.SnapshotSummary{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	var m tea.Model = NewSnapshotPickerModel(snaps)

	press := func(k tea.KeyType) {
		m, _ = m.Update(tea.KeyMsg{Type: k})
	}
	press(tea.KeyEnter) // mark s3
	press(tea.KeyUp)
	press(tea.KeyUp)
	if _, _, ok := m.(SnapshotPickerModel).Selection(); ok {
		t.Fatal("selection complete after one mark")
	}
	if !strings.Contains(m.View(), "compare with s3") {
		t.Errorf("view = %q", m.View())
	}
	press(tea.KeyEnter) // choose s1

	a, b, ok := m.(SnapshotPickerModel).Selection()
	if !ok || a != "s1" || b != "s3" {
		t.Errorf("selection = %s, %s, %v; want s1, s3 in order", a, b, ok)
	}
}

func TestSnapshotPickerCancel(t *testing.T) {
	var m tea.Model = NewSnapshotPickerModel([]bom.SnapshotSummary{{ID: "s1"}, {ID: "s2"}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if _, _, ok := m.(SnapshotPickerModel).Selection(); ok {
		t.Error("cancelled picker reported a selection")
	}
}
