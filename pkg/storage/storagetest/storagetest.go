// Package storagetest holds conformance tests shared by every storage
// backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

// SampleState returns a small catalog with one assembly.
func SampleState() bom.State {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return bom.State{
		Parts: []bom.Part{
			{PartNumber: "BIKE", Name: "Bicycle", Attributes: bom.Attributes{"unit_weight": bom.Number(9.5)}, LastUpdated: ts},
			{PartNumber: "WHEEL", Name: "Wheel", Attributes: bom.Attributes{"tubeless": bom.Bool(true), "color": bom.Text("black")}, LastUpdated: ts},
		},
		Relationships: []bom.Relationship{
			{RelID: "rel_000000000001", Parent: "BIKE", Child: "WHEEL", Qty: 2, Attributes: bom.Attributes{"position": bom.Text("front/rear")}, LastUpdated: ts},
		},
	}
}

// SampleSnapshot returns a snapshot with the given id, root and creation
// time.
func SampleSnapshot(id, root string, created time.Time, signature string) *bom.Snapshot {
	s := SampleState()
	return &bom.Snapshot{
		ID:             id,
		RootPartNumber: root,
		Label:          "sample",
		CreatedAt:      created.UTC(),
		Signature:      signature,
		Parts:          s.Parts,
		Relationships:  s.Relationships,
	}
}

// RunStateRepository exercises a StateRepository. newRepo must return a
// fresh, empty repository; reopen must return a new handle on the same
// underlying storage.
func RunStateRepository(t *testing.T, newRepo func(t *testing.T) (repo storage.StateRepository, reopen func() storage.StateRepository)) {
	ctx := context.Background()

	t.Run("empty load", func(t *testing.T) {
		repo, _ := newRepo(t)
		s, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(s.Parts) != 0 || len(s.Relationships) != 0 {
			t.Errorf("Load on empty repo = %+v", s)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		repo, reopen := newRepo(t)
		want := SampleState()
		if err := repo.Save(ctx, want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := repo.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		again := reopen()
		defer again.Close()
		got, err := again.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertStateEqual(t, got, want)
	})

	t.Run("save replaces", func(t *testing.T) {
		repo, _ := newRepo(t)
		defer repo.Close()
		_ = repo.Save(ctx, SampleState())
		smaller := SampleState()
		smaller.Relationships = nil
		smaller.Parts = smaller.Parts[:1]
		if err := repo.Save(ctx, smaller); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := repo.Load(ctx)
		assertStateEqual(t, got, smaller)
	})
}

// RunSnapshotRepository exercises a SnapshotRepository. newRepo must
// return a fresh, empty repository.
func RunSnapshotRepository(t *testing.T, newRepo func(t *testing.T) storage.SnapshotRepository) {
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and get", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()
		want := SampleSnapshot("snap_20240501_120000_aaaaaaaa", "BIKE", t0, "sig-1")
		if err := repo.Save(ctx, want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := repo.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != want.ID || got.Signature != want.Signature || !got.CreatedAt.Equal(want.CreatedAt) || got.Label != want.Label {
			t.Errorf("Get = %+v", got)
		}
		assertStateEqual(t, bom.State{Parts: got.Parts, Relationships: got.Relationships},
			bom.State{Parts: want.Parts, Relationships: want.Relationships})
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()
		s := SampleSnapshot("snap_20240501_120000_bbbbbbbb", "BIKE", t0, "sig-1")
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := repo.Save(ctx, s); !errors.Is(err, errors.ErrCodeConflict) {
			t.Errorf("second Save error = %v, want conflict", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()
		if _, err := repo.Get(ctx, "snap_20240501_120000_cccccccc"); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("Get(missing) error = %v, want not found", err)
		}
		if _, err := repo.Get(ctx, "../state"); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("Get(malformed) error = %v, want not found", err)
		}
	})

	t.Run("list order and filter", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()
		for _, s := range []*bom.Snapshot{
			SampleSnapshot("snap_20240501_120002_00000003", "BIKE", t0.Add(2*time.Second), "sig-3"),
			SampleSnapshot("snap_20240501_120000_00000002", "BIKE", t0, "sig-2"),
			SampleSnapshot("snap_20240501_120000_00000001", "BIKE", t0, "sig-1"),
			SampleSnapshot("snap_20240501_120001_00000004", "WHEEL", t0.Add(time.Second), "sig-4"),
		} {
			if err := repo.Save(ctx, s); err != nil {
				t.Fatalf("Save(%s): %v", s.ID, err)
			}
		}

		list, err := repo.List(ctx, "BIKE")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var ids []string
		for _, s := range list {
			ids = append(ids, s.ID[len(s.ID)-1:])
		}
		if got := ids; len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
			t.Errorf("List(BIKE) order = %v, want [1 2 3]", got)
		}

		all, _ := repo.List(ctx, "")
		if len(all) != 4 {
			t.Errorf("List(\"\") = %d snapshots, want 4", len(all))
		}
	})

	t.Run("find by signature", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()
		_ = repo.Save(ctx, SampleSnapshot("snap_20240501_120000_dddddddd", "BIKE", t0, "sig-x"))
		_ = repo.Save(ctx, SampleSnapshot("snap_20240501_120001_eeeeeeee", "WHEEL", t0.Add(time.Second), "sig-y"))

		got, err := repo.FindBySignature(ctx, "BIKE", "sig-x")
		if err != nil || got == nil || got.ID != "snap_20240501_120000_dddddddd" {
			t.Errorf("FindBySignature(BIKE, sig-x) = %v, %v", got, err)
		}
		if got, _ := repo.FindBySignature(ctx, "BIKE", "sig-y"); got != nil {
			t.Errorf("signature matched across roots: %v", got.ID)
		}
	})
}

func assertStateEqual(t *testing.T, got, want bom.State) {
	t.Helper()
	if len(got.Parts) != len(want.Parts) || len(got.Relationships) != len(want.Relationships) {
		t.Fatalf("state sizes = %d/%d, want %d/%d", len(got.Parts), len(got.Relationships), len(want.Parts), len(want.Relationships))
	}
	for i := range want.Parts {
		g, w := got.Parts[i], want.Parts[i]
		if g.PartNumber != w.PartNumber || g.Name != w.Name || !g.Attributes.Equal(w.Attributes) || !g.LastUpdated.Equal(w.LastUpdated) {
			t.Errorf("part %d = %+v, want %+v", i, g, w)
		}
	}
	for i := range want.Relationships {
		g, w := got.Relationships[i], want.Relationships[i]
		if g.RelID != w.RelID || g.Parent != w.Parent || g.Child != w.Child || g.Qty != w.Qty || !g.Attributes.Equal(w.Attributes) {
			t.Errorf("relationship %d = %+v, want %+v", i, g, w)
		}
	}
}
