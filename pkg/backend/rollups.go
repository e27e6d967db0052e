package backend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/cache"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
	"github.com/mbuck21/BOM-Manager/pkg/snapshot"
	"github.com/mbuck21/BOM-Manager/pkg/traverse"
)

// cachedRollup is the cache payload; warnings are not part of the result
// types' JSON, so they travel alongside.
type cachedRollup[T any] struct {
	Data     T        `json:"data"`
	Warnings []string `json:"warnings"`
}

// WeightDefaults returns the configured weight options for root.
func (b *Backend) WeightDefaults(root string) rollup.WeightOptions {
	opts := b.weight
	opts.Root = root
	return opts
}

// NumericRollup sums attribute × multiplier over every path under the root.
func (b *Backend) NumericRollup(ctx context.Context, opts rollup.NumericOptions) result.Result[*rollup.NumericResult] {
	opts.Root = strings.TrimSpace(opts.Root)
	opts.AttributeKey = strings.TrimSpace(opts.AttributeKey)
	return cachedRollupRun(ctx, b, "numeric", opts.Root, opts,
		func() error {
			if opts.AttributeKey == "" {
				return errors.New(errors.ErrCodeValidation, "attribute_key is required")
			}
			return nil
		},
		func(src traverse.Source) (*rollup.NumericResult, []string, error) {
			res, err := rollup.Numeric(src, opts)
			if err != nil {
				return nil, nil, err
			}
			return res, res.Warnings, nil
		},
		func(r *rollup.NumericResult) int { return len(r.Breakdown) },
	)
}

// WeightRollup computes the weight of the root with maturity factors and
// per-path override. Empty attribute keys and a zero default maturity
// factor fall back to the configured defaults.
func (b *Backend) WeightRollup(ctx context.Context, opts rollup.WeightOptions) result.Result[*rollup.WeightResult] {
	if opts.UnitWeightKey == "" {
		opts.UnitWeightKey = b.weight.UnitWeightKey
	}
	if opts.MaturityFactorKey == "" {
		opts.MaturityFactorKey = b.weight.MaturityFactorKey
	}
	if opts.DefaultMaturityFactor == 0 {
		opts.DefaultMaturityFactor = b.weight.DefaultMaturityFactor
	}
	normalized, verr := opts.Normalize()
	return cachedRollupRun(ctx, b, "weight", normalized.Root, normalized,
		func() error { return verr },
		func(src traverse.Source) (*rollup.WeightResult, []string, error) {
			res, err := rollup.Weight(src, normalized)
			if err != nil {
				return nil, nil, err
			}
			return res, res.Warnings, nil
		},
		func(r *rollup.WeightResult) int { return len(r.Breakdown) },
	)
}

// cachedRollupRun validates, resolves the root, and serves compute from the
// cache when the subgraph under root is unchanged. The cache key is derived
// from the subgraph's content signature and the options.
func cachedRollupRun[T any](
	ctx context.Context,
	b *Backend,
	kind, root string,
	opts any,
	validate func() error,
	compute func(traverse.Source) (T, []string, error),
	entries func(T) int,
) result.Result[T] {
	start := time.Now()
	cached := false
	res := result.Guard(kind+"_rollup", func() (T, []string, error) {
		var zero T
		if err := errors.ValidatePartNumber("root_part_number", root); err != nil {
			return zero, nil, err
		}
		if err := validate(); err != nil {
			return zero, nil, err
		}

		var (
			data     T
			warnings []string
			key      string
			kerr     error
		)
		err := func() error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			if !b.graph.HasNode(root) {
				return errors.New(errors.ErrCodeNotFound, "Part '%s' not found", root)
			}
			if !cache.Enabled(b.cache) {
				kerr = errCacheDisabled
			} else {
				key, kerr = b.rollupKey(kind, root, opts)
			}
			if kerr == nil {
				if hit, ok := b.cacheGet(ctx, kind, key); ok {
					var c cachedRollup[T]
					if json.Unmarshal(hit, &c) == nil {
						data, warnings, cached = c.Data, c.Warnings, true
						return nil
					}
				}
			}
			var err error
			data, warnings, err = compute(b.graph)
			return err
		}()
		if err != nil {
			return zero, nil, err
		}
		if !cached && kerr == nil {
			b.cacheSet(ctx, kind, key, cachedRollup[T]{Data: data, Warnings: warnings})
		}
		return data, warnings, nil
	})

	n := 0
	if res.OK {
		n = entries(res.Data)
	}
	observability.Rollup().OnRollupComplete(ctx, kind, n, cached, time.Since(start), res.Err())
	b.logger.Debug("rollup", "kind", kind, "root", root, "entries", n, "cached", cached, "ok", res.OK)
	return res
}

var errCacheDisabled = stderrors.New("rollup cache disabled")

// rollupKey must be called with the read lock held.
func (b *Backend) rollupKey(kind, root string, opts any) (string, error) {
	sub := traverse.Subgraph(b.graph, root)
	sig, err := snapshot.Signature(root, sub.Parts, sub.Relationships)
	if err != nil {
		return "", err
	}
	return b.keyer.RollupKey(kind, sig, opts), nil
}

func (b *Backend) cacheGet(ctx context.Context, kind, key string) ([]byte, bool) {
	data, hit, err := b.cache.Get(ctx, key)
	if err != nil {
		b.logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, "rollup:"+kind)
	} else {
		observability.Cache().OnCacheMiss(ctx, "rollup:"+kind)
	}
	return data, hit
}

func (b *Backend) cacheSet(ctx context.Context, kind, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := b.cache.Set(ctx, key, data, b.cacheTTL); err != nil {
		b.logger.Warn("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "rollup:"+kind, len(data))
}
