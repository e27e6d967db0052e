package backend

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/cache"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
	"github.com/mbuck21/BOM-Manager/pkg/snapshot"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/storage/memory"
)

// Options configures [Open]. Zero values select in-memory storage, no
// caching and the default logger.
type Options struct {
	State     storage.StateRepository
	Snapshots storage.SnapshotRepository

	Cache    cache.Cache
	Keyer    cache.Keyer
	CacheTTL time.Duration

	// Rollup supplies defaults for weight rollups (root is ignored).
	Rollup rollup.WeightOptions

	Logger *log.Logger
	// Clock overrides timestamps, for tests.
	Clock func() time.Time
}

// Backend serves every BOM operation. It is safe for concurrent use.
type Backend struct {
	mu    sync.RWMutex
	graph *bom.Graph

	state     storage.StateRepository
	snapRepo  storage.SnapshotRepository
	snapshots *snapshot.Store

	cache    cache.Cache
	keyer    cache.Keyer
	cacheTTL time.Duration
	weight   rollup.WeightOptions

	logger *log.Logger
}

// Open loads the persisted state and returns a ready backend. Loading runs
// a full cycle scan over the stored relationships.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	if opts.State == nil {
		opts.State = memory.NewStateRepository()
	}
	if opts.Snapshots == nil {
		opts.Snapshots = memory.NewSnapshotRepository()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Rollup.UnitWeightKey == "" && opts.Rollup.DefaultMaturityFactor == 0 {
		opts.Rollup = rollup.DefaultWeightOptions("")
	}

	g := bom.NewGraph()
	store := snapshot.NewStore(opts.Snapshots)
	if opts.Clock != nil {
		g.SetClock(opts.Clock)
		store.SetClock(opts.Clock)
	}

	state, err := opts.State.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load state")
	}
	if err := g.Load(state); err != nil {
		return nil, err
	}
	opts.Logger.Debug("loaded state", "parts", len(state.Parts), "relationships", len(state.Relationships))

	return &Backend{
		graph:     g,
		state:     opts.State,
		snapRepo:  opts.Snapshots,
		snapshots: store,
		cache:     opts.Cache,
		keyer:     opts.Keyer,
		cacheTTL:  opts.CacheTTL,
		weight:    opts.Rollup,
		logger:    opts.Logger,
	}, nil
}

// Close releases the repositories and the cache.
func (b *Backend) Close() error {
	return stderrors.Join(b.state.Close(), b.snapRepo.Close(), b.cache.Close())
}

// Logger returns the backend's logger.
func (b *Backend) Logger() *log.Logger { return b.logger }

// Stats counts the stored records.
type Stats struct {
	Parts         int `json:"parts"`
	Relationships int `json:"relationships"`
	Snapshots     int `json:"snapshots"`
}

// Stats returns record counts.
func (b *Backend) Stats(ctx context.Context) result.Result[Stats] {
	return result.Guard("stats", func() (Stats, []string, error) {
		b.mu.RLock()
		s := Stats{Parts: b.graph.Catalog().Len(), Relationships: b.graph.RelationshipCount()}
		b.mu.RUnlock()

		snaps, err := b.snapshots.List(ctx, "")
		if err != nil {
			return Stats{}, nil, err
		}
		s.Snapshots = len(snaps)
		return s, nil, nil
	})
}

// mutation is one in-memory change plus the closure that reverts it.
type mutation[T any] struct {
	data     T
	warnings []string
	undo     func()
}

// mutate runs apply under the write lock, persists the new state and
// reverts apply's change if persisting fails.
func mutate[T any](ctx context.Context, b *Backend, op string, apply func(g *bom.Graph) (mutation[T], error)) result.Result[T] {
	start := time.Now()
	res := result.Guard(op, func() (T, []string, error) {
		b.mu.Lock()
		defer b.mu.Unlock()

		m, err := apply(b.graph)
		if err != nil {
			var zero T
			return zero, nil, err
		}
		if err := b.state.Save(ctx, b.graph.State()); err != nil {
			if m.undo != nil {
				m.undo()
			}
			var zero T
			return zero, nil, errors.Wrap(errors.ErrCodeInternal, err, "persist state")
		}
		return m.data, m.warnings, nil
	})
	b.report(ctx, op, time.Since(start), res.Err(), res.Warnings)
	return res
}

func (b *Backend) report(ctx context.Context, op string, d time.Duration, err error, warnings []string) {
	observability.Graph().OnMutation(ctx, op, d, err)
	if err != nil {
		var ce *errors.CycleError
		if stderrors.As(err, &ce) && len(ce.Path) > 1 {
			observability.Graph().OnCycleRejected(ctx, ce.Path[0], ce.Path[1])
		}
		if errors.GetCode(err) == errors.ErrCodeInternal {
			b.logger.Error("mutation failed", "op", op, "err", err)
		} else {
			b.logger.Debug("mutation rejected", "op", op, "code", errors.GetCode(err), "err", errors.UserMessage(err))
		}
		return
	}
	for _, w := range warnings {
		b.logger.Warn(w, "op", op)
	}
	b.logger.Debug("mutation applied", "op", op, "duration", d)
}
