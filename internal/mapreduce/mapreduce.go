// Package mapreduce streams a keyspace's values through an injected
// transform/reduce pair (spec §1's "map/reduce facility that executes
// ... modules over stored values with strong type guarantees"). It is a
// thin caller of TypedStore.ListKeys/Get; it holds no codec or
// compatibility logic of its own.
package mapreduce

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/typegraph"
)

// Job describes one map/reduce run over a keyspace.
type Job struct {
	Keyspace string
	Prefix   string
	Limit    int // "keys considered" from the engine scan, not keys kept

	// Transform maps one stored value to a mapped value, or ok=false to
	// drop it from the reduction (the transform's own rejection, not an
	// error).
	Transform func(key string, v typegraph.Value) (mapped any, ok bool, err error)

	// Reduce folds one mapped value into acc and returns the new
	// accumulator.
	Reduce func(acc any, mapped any) any

	// Seed is the reducer's initial accumulator.
	Seed any
}

// Run walks job.Keyspace's keys (bounded by job.Limit, honoring
// job.Prefix), applying Transform then Reduce in key order. considered is
// the number of keys ListKeys returned, which is
// min(job.Limit, keys matching the scan) regardless of how many the
// transform kept (spec's map/reduce limit-semantics resolution).
func Run(ctx context.Context, s *store.TypedStore, job Job) (acc any, considered int, err error) {
	keys, err := s.ListKeys(ctx, job.Keyspace, store.ListOptions{Prefix: job.Prefix, Limit: job.Limit})
	if err != nil {
		return nil, 0, err
	}

	acc = job.Seed
	for _, key := range keys {
		considered++
		v, err := s.Get(ctx, job.Keyspace, key)
		if err != nil {
			return nil, considered, err
		}
		mapped, ok, err := job.Transform(key, v)
		if err != nil {
			return nil, considered, fmt.Errorf("mapreduce: transform failed for key %q: %w", key, err)
		}
		if !ok {
			continue
		}
		acc = job.Reduce(acc, mapped)
	}
	return acc, considered, nil
}

// RunSharded partitions job across the given key prefixes and runs one
// Run per shard concurrently via golang.org/x/sync/errgroup, returning
// each shard's (accumulator, considered) pair in prefixes order. A
// caller-supplied merge step (not this function's concern) combines the
// per-shard accumulators.
func RunSharded(ctx context.Context, s *store.TypedStore, job Job, prefixes []string) ([]any, []int, error) {
	results := make([]any, len(prefixes))
	considered := make([]int, len(prefixes))

	g, gctx := errgroup.WithContext(ctx)
	for i, prefix := range prefixes {
		i, prefix := i, prefix
		shardJob := job
		shardJob.Prefix = prefix
		g.Go(func() error {
			acc, n, err := Run(gctx, s, shardJob)
			if err != nil {
				return err
			}
			results[i], considered[i] = acc, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, considered, nil
}
