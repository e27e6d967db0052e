package backend

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/diff"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/snapshot"
)

// SnapshotList is the data of [Backend.ListSnapshots].
type SnapshotList struct {
	RootPartNumber string                `json:"root_part_number,omitempty"`
	Snapshots      []bom.SnapshotSummary `json:"snapshots"`
}

// CreateSnapshot captures the subgraph under root. With dedupe set, an
// existing snapshot with the same content is returned instead of a new one.
func (b *Backend) CreateSnapshot(ctx context.Context, root, label string, dedupe bool) result.Result[*snapshot.CreateResult] {
	return result.Guard("create_snapshot", func() (*snapshot.CreateResult, []string, error) {
		b.mu.RLock()
		c, err := b.snapshots.Capture(b.graph, root, label)
		b.mu.RUnlock()
		if err != nil {
			return nil, nil, err
		}

		res, err := b.snapshots.Save(ctx, c, dedupe)
		if err != nil {
			return nil, nil, err
		}
		b.logger.Info("snapshot",
			"id", res.Snapshot.ID,
			"root", res.Snapshot.RootPartNumber,
			"deduplicated", res.Deduplicated,
			"parts", len(res.Snapshot.Parts),
			"relationships", len(res.Snapshot.Relationships))
		return res, c.Warnings, nil
	})
}

// GetSnapshot loads a snapshot by id.
func (b *Backend) GetSnapshot(ctx context.Context, id string) result.Result[*bom.Snapshot] {
	return result.Guard("get_snapshot", func() (*bom.Snapshot, []string, error) {
		s, err := b.snapshots.Get(ctx, id)
		return s, nil, err
	})
}

// ListSnapshots lists snapshot summaries for root (all roots when empty),
// ordered by (created_at, id).
func (b *Backend) ListSnapshots(ctx context.Context, root string) result.Result[SnapshotList] {
	return result.Guard("list_snapshots", func() (SnapshotList, []string, error) {
		snaps, err := b.snapshots.List(ctx, root)
		if err != nil {
			return SnapshotList{}, nil, err
		}
		out := SnapshotList{RootPartNumber: strings.TrimSpace(root), Snapshots: make([]bom.SnapshotSummary, 0, len(snaps))}
		for _, s := range snaps {
			out.Snapshots = append(out.Snapshots, s.Summary())
		}
		return out, nil, nil
	})
}

// CompareSnapshots diffs snapshot b against snapshot a. Every missing id is
// reported, not just the first.
func (b *Backend) CompareSnapshots(ctx context.Context, idA, idB string) result.Result[*diff.Result] {
	start := time.Now()
	res := result.Guard("compare_snapshots", func() (*diff.Result, []string, error) {
		idA, idB := strings.TrimSpace(idA), strings.TrimSpace(idB)
		if idA == "" || idB == "" {
			return nil, nil, errors.New(errors.ErrCodeValidation, "snapshot_id_a and snapshot_id_b are required")
		}
		a, errA := b.snapshots.Get(ctx, idA)
		bb, errB := b.snapshots.Get(ctx, idB)
		if err := stderrors.Join(errA, errB); err != nil {
			return nil, nil, err
		}
		return diff.Compare(a, bb), nil, nil
	})
	if res.OK {
		observability.Snapshot().OnDiff(ctx, res.Data.Equal, time.Since(start))
	}
	return res
}
