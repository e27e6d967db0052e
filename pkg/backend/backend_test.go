package backend

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/cache"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/interchange"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
	"github.com/mbuck21/BOM-Manager/pkg/storage/file"
	"github.com/mbuck21/BOM-Manager/pkg/storage/memory"
)

type countingCache struct {
	mu         sync.Mutex
	data       map[string][]byte
	hits, sets int
}

func newCountingCache() *countingCache { return &countingCache{data: map[string][]byte{}} }

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	if ok {
		c.hits++
	}
	return d, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *countingCache) Close() error { return nil }

func newTestBackend(t *testing.T, opts Options) *Backend {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
		opts.Logger.SetLevel(log.ErrorLevel)
	}
	if opts.Clock == nil {
		tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		opts.Clock = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick = tick.Add(time.Second)
			return tick
		}
	}
	b, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func addPart(t *testing.T, b *Backend, id string, attrs bom.Attributes) {
	t.Helper()
	if r := b.UpsertPart(context.Background(), bom.PartInput{PartNumber: id, Name: "Part " + id, Attributes: attrs}); !r.OK {
		t.Fatalf("UpsertPart(%s): %v", id, r.Errors)
	}
}

func addRel(t *testing.T, b *Backend, parent, child string, qty float64) bom.Relationship {
	t.Helper()
	r := b.UpsertRelationship(context.Background(), bom.RelationshipInput{Parent: parent, Child: child, Qty: qty})
	if !r.OK {
		t.Fatalf("UpsertRelationship(%s->%s): %v", parent, child, r.Errors)
	}
	return r.Data.Relationship
}

func TestCycleRejected(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{})
	for _, id := range []string{"A", "B", "C"} {
		addPart(t, b, id, nil)
	}
	addRel(t, b, "A", "B", 1)
	addRel(t, b, "B", "C", 1)

	r := b.UpsertRelationship(ctx, bom.RelationshipInput{Parent: "C", Child: "A", Qty: 1})
	if r.OK || r.Code != errors.ErrCodeCycle {
		t.Fatalf("result = %+v, want cycle error", r)
	}
	if r.Errors[0] != "Cycle detected: C -> A -> B -> C" {
		t.Errorf("message = %q", r.Errors[0])
	}
	if n := b.Stats(ctx).Data.Relationships; n != 2 {
		t.Errorf("relationships after rejection = %d, want 2", n)
	}

	self := b.UpsertRelationship(ctx, bom.RelationshipInput{Parent: "A", Child: "A", Qty: 1})
	if self.Code != errors.ErrCodeCycle {
		t.Errorf("self loop code = %q", self.Code)
	}
}

func TestRelationshipValidation(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{})
	addPart(t, b, "A", nil)

	tests := []struct {
		name string
		in   bom.RelationshipInput
		code errors.Code
	}{
		{"zero qty", bom.RelationshipInput{Parent: "A", Child: "B", Qty: 0}, errors.ErrCodeValidation},
		{"missing parent", bom.RelationshipInput{Child: "A", Qty: 1}, errors.ErrCodeValidation},
		{"dangling", bom.RelationshipInput{Parent: "A", Child: "B", Qty: 1}, errors.ErrCodeDanglingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := b.UpsertRelationship(ctx, tt.in); r.OK || r.Code != tt.code {
				t.Errorf("code = %q, want %q (%v)", r.Code, tt.code, r.Errors)
			}
		})
	}

	r := b.UpsertRelationship(ctx, bom.RelationshipInput{Parent: "A", Child: "B", Qty: 1, AllowDangling: true})
	if !r.OK || len(r.Warnings) != 1 || r.Warnings[0] != "Missing part(s): B" {
		t.Errorf("allow dangling = %+v", r)
	}
	kids := b.ChildrenOf(ctx, "A")
	if !kids.OK || len(kids.Data.Links) != 1 || kids.Data.Links[0].Part != nil {
		t.Fatalf("ChildrenOf = %+v", kids)
	}
	if kids.Warnings[0] != "Child part 'B' does not exist in part catalog" {
		t.Errorf("warning = %q", kids.Warnings[0])
	}
}

func TestPersistFailureReverts(t *testing.T) {
	ctx := context.Background()
	state := memory.NewStateRepository()
	b := newTestBackend(t, Options{State: state})
	addPart(t, b, "A", bom.Attributes{"mass": bom.Number(1)})
	addPart(t, b, "B", nil)
	rel := addRel(t, b, "A", "B", 2)

	state.FailSave = stderrors.New("disk full")

	if r := b.UpsertPart(ctx, bom.PartInput{PartNumber: "C", Name: "C"}); r.OK || r.Code != errors.ErrCodeInternal {
		t.Fatalf("create with failing store = %+v", r)
	}
	if r := b.GetPart(ctx, "C"); r.Code != errors.ErrCodeNotFound {
		t.Errorf("part C survived a failed save")
	}

	b.UpdatePartAttributes(ctx, "A", bom.Attributes{"mass": bom.Number(5)}, false)
	if got := b.GetPart(ctx, "A").Data.Attributes["mass"]; !got.Equal(bom.Number(1)) {
		t.Errorf("mass after failed update = %v, want 1", got)
	}

	b.UpsertRelationship(ctx, bom.RelationshipInput{RelID: rel.RelID, Parent: "A", Child: "B", Qty: 9})
	b.DeleteRelationship(ctx, rel.RelID)
	kids := b.ChildrenOf(ctx, "A").Data.Links
	if len(kids) != 1 || kids[0].Relationship.Qty != 2 {
		t.Errorf("relationship after failed writes = %+v", kids)
	}

	b.DeletePart(ctx, "B", true)
	if !b.GetPart(ctx, "B").OK {
		t.Error("part B deleted despite failed save")
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *Backend {
		snaps, err := file.NewSnapshotRepository(filepath.Join(dir, "snapshots"))
		if err != nil {
			t.Fatal(err)
		}
		return newTestBackend(t, Options{
			State:     file.NewStateRepository(filepath.Join(dir, file.StateFileName)),
			Snapshots: snaps,
		})
	}

	b := open()
	addPart(t, b, "BIKE", nil)
	addPart(t, b, "WHEEL", bom.Attributes{"unit_weight": bom.Number(1.5)})
	addRel(t, b, "BIKE", "WHEEL", 2)
	snap := b.CreateSnapshot(ctx, "BIKE", "v1", true)
	if !snap.OK {
		t.Fatalf("CreateSnapshot: %v", snap.Errors)
	}

	again := open()
	w := again.WeightRollup(ctx, again.WeightDefaults("BIKE"))
	if !w.OK || w.Data.Total != 3 {
		t.Errorf("weight after reopen = %+v", w)
	}
	if r := again.GetSnapshot(ctx, snap.Data.Snapshot.ID); !r.OK {
		t.Errorf("GetSnapshot after reopen: %v", r.Errors)
	}
}

func TestDeletePart(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{})
	addPart(t, b, "A", nil)
	addPart(t, b, "B", nil)
	addRel(t, b, "A", "B", 1)

	r := b.DeletePart(ctx, "B", false)
	if r.Code != errors.ErrCodeConflict || r.Errors[0] != "Part 'B' has 1 relationship references and cannot be deleted" {
		t.Errorf("delete referenced = %+v", r)
	}
	r = b.DeletePart(ctx, "B", true)
	if !r.OK || len(r.Warnings) != 1 {
		t.Errorf("forced delete = %+v", r)
	}
	if r := b.DeletePart(ctx, "B", true); r.Code != errors.ErrCodeNotFound {
		t.Errorf("second delete code = %q", r.Code)
	}
}

func TestNumericRollupThroughBackend(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{})
	addPart(t, b, "A", bom.Attributes{"weight_kg": bom.Number(10)})
	addPart(t, b, "B", bom.Attributes{"weight_kg": bom.Number(2)})
	addRel(t, b, "A", "B", 2)

	r := b.NumericRollup(ctx, rollup.NumericOptions{Root: "A", AttributeKey: "weight_kg", IncludeRoot: true})
	if !r.OK || r.Data.Total != 14 {
		t.Errorf("numeric = %+v", r)
	}
	if r := b.NumericRollup(ctx, rollup.NumericOptions{Root: "ZZZ", AttributeKey: "weight_kg"}); r.Code != errors.ErrCodeNotFound {
		t.Errorf("unknown root code = %q", r.Code)
	}
	if r := b.NumericRollup(ctx, rollup.NumericOptions{Root: "A"}); r.Code != errors.ErrCodeValidation {
		t.Errorf("missing key code = %q", r.Code)
	}
}

func TestRollupCache(t *testing.T) {
	ctx := context.Background()
	c := newCountingCache()
	b := newTestBackend(t, Options{Cache: c})
	addPart(t, b, "ROOT", nil)
	addPart(t, b, "LEAF", bom.Attributes{"unit_weight": bom.Number(4), "maturity_factor": bom.Number(1.5)})
	addRel(t, b, "ROOT", "LEAF", 2)

	first := b.WeightRollup(ctx, b.WeightDefaults("ROOT"))
	second := b.WeightRollup(ctx, b.WeightDefaults("ROOT"))
	if !first.OK || !second.OK || first.Data.Total != 12 || second.Data.Total != 12 {
		t.Fatalf("totals = %v / %v", first.Data, second.Data)
	}
	if c.hits != 1 || c.sets != 1 {
		t.Errorf("hits=%d sets=%d, want 1/1", c.hits, c.sets)
	}

	// A content change under the root produces a new key.
	b.UpdatePartAttributes(ctx, "LEAF", bom.Attributes{"unit_weight": bom.Number(5)}, false)
	third := b.WeightRollup(ctx, b.WeightDefaults("ROOT"))
	if third.Data.Total != 15 || c.sets != 2 {
		t.Errorf("after change total=%v sets=%d", third.Data.Total, c.sets)
	}
}

type countingKeyer struct {
	cache.Keyer
	calls atomic.Int32
}

func (k *countingKeyer) RollupKey(kind, signature string, opts any) string {
	k.calls.Add(1)
	return k.Keyer.RollupKey(kind, signature, opts)
}

func TestRollupWithoutCacheSkipsKeys(t *testing.T) {
	ctx := context.Background()
	keyer := &countingKeyer{Keyer: cache.NewDefaultKeyer()}
	b := newTestBackend(t, Options{Keyer: keyer})
	addPart(t, b, "A", bom.Attributes{"weight_kg": bom.Number(10)})
	addPart(t, b, "B", bom.Attributes{"weight_kg": bom.Number(2)})
	addRel(t, b, "A", "B", 2)

	for range 2 {
		if r := b.NumericRollup(ctx, rollup.NewNumericOptions("A", "weight_kg")); !r.OK || r.Data.Total != 14 {
			t.Fatalf("numeric = %+v", r)
		}
	}
	if n := keyer.calls.Load(); n != 0 {
		t.Errorf("keyer called %d times with caching disabled", n)
	}
}

func TestSnapshotsAndDiff(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{})
	addPart(t, b, "BIKE", nil)
	addPart(t, b, "WHEEL", nil)
	rel := addRel(t, b, "BIKE", "WHEEL", 2)

	s1 := b.CreateSnapshot(ctx, "BIKE", "before", true)
	dup := b.CreateSnapshot(ctx, "BIKE", "again", true)
	if !dup.OK || !dup.Data.Deduplicated || dup.Data.Snapshot.ID != s1.Data.Snapshot.ID {
		t.Fatalf("dedup = %+v", dup.Data)
	}

	same := b.CompareSnapshots(ctx, s1.Data.Snapshot.ID, dup.Data.Snapshot.ID)
	if !same.OK || !same.Data.SignaturesEqual || same.Data.ChangeCount() != 0 {
		t.Errorf("compare identical = %+v", same.Data)
	}

	b.UpsertRelationship(ctx, bom.RelationshipInput{RelID: rel.RelID, Parent: "BIKE", Child: "WHEEL", Qty: 3})
	s2 := b.CreateSnapshot(ctx, "BIKE", "after", true)
	if s2.Data.Deduplicated {
		t.Fatal("changed content deduplicated")
	}

	d := b.CompareSnapshots(ctx, s1.Data.Snapshot.ID, s2.Data.Snapshot.ID)
	if !d.OK {
		t.Fatalf("CompareSnapshots: %v", d.Errors)
	}
	rc := d.Data.RelationshipChanges
	if len(rc.Modified) != 1 || rc.Modified[0].Qty.Before != 2 || rc.Modified[0].Qty.After != 3 || len(rc.Added)+len(rc.Removed) != 0 {
		t.Errorf("relationship changes = %+v", rc)
	}

	list := b.ListSnapshots(ctx, "BIKE")
	if len(list.Data.Snapshots) != 2 || list.Data.Snapshots[0].Label != "before" {
		t.Errorf("ListSnapshots = %+v", list.Data)
	}

	missing := b.CompareSnapshots(ctx, "snap_20990101_000000_00000000", "snap_20990101_000000_11111111")
	if missing.Code != errors.ErrCodeNotFound || len(missing.Errors) != 2 {
		t.Errorf("missing compare = %+v", missing)
	}
	if r := b.CreateSnapshot(ctx, "NOPE", "", true); r.Code != errors.ErrCodeNotFound {
		t.Errorf("snapshot of unknown root code = %q", r.Code)
	}

	for _, id := range []string{"snap_nope", "../state", "snap_20990101_000000_ZZZZZZZZ"} {
		r := b.GetSnapshot(ctx, id)
		if r.Code != errors.ErrCodeNotFound || len(r.Errors) != 1 || r.Errors[0] != "Snapshot '"+id+"' not found" {
			t.Errorf("GetSnapshot(%q) = %+v, want NOT_FOUND", id, r)
		}
	}
	bad := b.CompareSnapshots(ctx, s1.Data.Snapshot.ID, "snap_nope")
	if bad.Code != errors.ErrCodeNotFound || len(bad.Errors) != 1 {
		t.Errorf("compare with malformed id = %+v", bad)
	}
}

func TestImportExportCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := newTestBackend(t, Options{})

	parts := filepath.Join(dir, "parts.csv")
	rels := filepath.Join(dir, "rels.csv")
	mustWrite(t, parts, "part_number,name,unit_weight\nBIKE,Bike,\nWHEEL,Wheel,1.25\n,Broken,\n")
	mustWrite(t, rels, "parent_part_number,child_part_number,qty\nBIKE,WHEEL,2\nWHEEL,BIKE,1\nBIKE,GHOST,1\n")

	pr := b.ImportPartsCSV(ctx, parts, false)
	if !pr.OK || pr.Data.Created != 2 || pr.Data.FailedRows != 1 {
		t.Fatalf("parts import = %+v", pr)
	}
	rr := b.ImportRelationshipsCSV(ctx, rels, false, false)
	if !rr.OK || rr.Data.Created != 1 || rr.Data.FailedRows != 2 {
		t.Fatalf("relationships import = %+v", rr)
	}
	if !strings.HasPrefix(rr.Data.RowErrors[0], "Row 3: Cycle detected") {
		t.Errorf("row errors = %q", rr.Data.RowErrors)
	}

	if r := b.ImportPartsCSV(ctx, filepath.Join(dir, "nope.csv"), false); r.Code != errors.ErrCodeNotFound {
		t.Errorf("missing file code = %q", r.Code)
	}

	out := filepath.Join(dir, "out", "rels.csv")
	ex := b.ExportRelationshipsCSV(ctx, out, interchange.ExportOptions{IncludeAttributesJSON: true})
	if !ex.OK || ex.Data.Rows != 1 {
		t.Fatalf("export = %+v", ex)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "BIKE,WHEEL,2,") {
		t.Errorf("export content:\n%s", data)
	}
}

func TestImportRevertsOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	state := memory.NewStateRepository()
	b := newTestBackend(t, Options{State: state})
	state.FailSave = stderrors.New("read-only")

	r := b.ImportParts(ctx, strings.NewReader("part_number,name\nA,A\nB,B\n"), "inline", false)
	if r.OK {
		t.Fatal("import succeeded with failing store")
	}
	if n := b.Stats(ctx).Data.Parts; n != 0 {
		t.Errorf("parts after reverted import = %d", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Options{Cache: newCountingCache()})
	addPart(t, b, "ROOT", nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("P%02d", i)
			b.UpsertPart(ctx, bom.PartInput{PartNumber: id, Name: id, Attributes: bom.Attributes{"unit_weight": bom.Number(1)}})
			b.UpsertRelationship(ctx, bom.RelationshipInput{Parent: "ROOT", Child: id, Qty: 1})
		}()
		go func() {
			defer wg.Done()
			if r := b.WeightRollup(ctx, b.WeightDefaults("ROOT")); !r.OK {
				t.Errorf("rollup: %v", r.Errors)
			}
			b.CreateSnapshot(ctx, "ROOT", "", true)
		}()
	}
	wg.Wait()

	w := b.WeightRollup(ctx, b.WeightDefaults("ROOT"))
	if w.Data.Total != 8 {
		t.Errorf("final total = %v, want 8", w.Data.Total)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
