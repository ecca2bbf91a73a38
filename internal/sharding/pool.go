// Package sharding runs N independent riskengine.Engine instances, each
// owning a disjoint partition of the order-key space, the way spec.md §5
// describes the only sanctioned form of parallelism for this core: "callers
// that need parallelism partition the order key space across independent
// engine instances — there is no shared mutable state between engines and
// no cross-engine coordination." Pool is purely a router; every event still
// runs to completion on exactly one Engine before the next is considered.
package sharding

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pretrade-risk-engine/internal/book"
	"pretrade-risk-engine/internal/riskengine"
	"pretrade-risk-engine/internal/riskerr"
	"pretrade-risk-engine/pkg/types"
)

// Pool routes events to one of N engines by order key and fans out the
// whole-book operations (Reconcile, CleanupTerminal) across all
// shards concurrently, since those have no cross-shard dependency.
type Pool struct {
	shards []*riskengine.Engine

	mu     sync.Mutex
	routes map[types.OrderKey]int // order key (primary or pending secondary) -> shard index
}

// New builds a Pool over shards. shards must be non-empty, and each one
// otherwise unused by any other caller — Pool assumes exclusive ownership
// of the order-key space it routes into them.
func New(shards []*riskengine.Engine) *Pool {
	return &Pool{
		shards: shards,
		routes: make(map[types.OrderKey]int),
	}
}

// Shards returns the number of engine partitions in the pool.
func (p *Pool) Shards() int {
	return len(p.shards)
}

func shardFor(key types.OrderKey, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % n
}

// route returns the shard owning key, assigning it to one by hash on first
// sight (the NewOrderSingle case).
func (p *Pool) route(key types.OrderKey) *riskengine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.routes[key]
	if !ok {
		idx = shardFor(key, len(p.shards))
		p.routes[key] = idx
	}
	return p.shards[idx]
}

// bind records that secondaryKey resolves to the same shard as origKey —
// used for replace/cancel secondary keys, which must land on the shard that
// already holds the primary order rather than wherever their own hash
// would have sent them.
func (p *Pool) bind(origKey, secondaryKey types.OrderKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.routes[origKey]
	if !ok {
		idx = shardFor(origKey, len(p.shards))
		p.routes[origKey] = idx
	}
	p.routes[secondaryKey] = idx
}

// rekey moves origKey's routing entry to newKey once a completed replace
// changes the order's primary key.
func (p *Pool) rekey(origKey, newKey types.OrderKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.routes[origKey]
	if !ok {
		return
	}
	p.routes[newKey] = idx
	if origKey != newKey {
		delete(p.routes, origKey)
	}
}

// Submit routes req to a shard by req.Key and submits it there.
func (p *Pool) Submit(req riskengine.SubmitRequest) (types.Decision, error) {
	return p.route(req.Key).Submit(req)
}

// Acknowledge routes to key's shard.
func (p *Pool) Acknowledge(key types.OrderKey) error {
	return p.route(key).Acknowledge(key)
}

// Reject routes to key's shard.
func (p *Pool) Reject(key types.OrderKey) error {
	return p.route(key).Reject(key)
}

// StartReplace routes to origKey's shard and binds newKey to it.
func (p *Pool) StartReplace(origKey, newKey types.OrderKey, newPrice, newQty decimal.Decimal) error {
	if err := p.route(origKey).StartReplace(origKey, newKey, newPrice, newQty); err != nil {
		return err
	}
	p.bind(origKey, newKey)
	return nil
}

// CompleteReplace routes to origKey's shard and migrates the routing entry
// onto newKey — the same new key the matching StartReplace call supplied.
func (p *Pool) CompleteReplace(origKey, newKey types.OrderKey) error {
	if err := p.route(origKey).CompleteReplace(origKey); err != nil {
		return err
	}
	p.rekey(origKey, newKey)
	return nil
}

// RejectReplace routes to origKey's shard.
func (p *Pool) RejectReplace(origKey types.OrderKey) error {
	return p.route(origKey).RejectReplace(origKey)
}

// StartCancel routes to origKey's shard and binds cancelKey to it.
func (p *Pool) StartCancel(origKey, cancelKey types.OrderKey) error {
	if err := p.route(origKey).StartCancel(origKey, cancelKey); err != nil {
		return err
	}
	p.bind(origKey, cancelKey)
	return nil
}

// CompleteCancel routes key (primary or a bound cancel key) to its shard.
func (p *Pool) CompleteCancel(key types.OrderKey) error {
	return p.route(key).CompleteCancel(key)
}

// RejectCancel routes to origKey's shard.
func (p *Pool) RejectCancel(origKey types.OrderKey) error {
	return p.route(origKey).RejectCancel(origKey)
}

// Fill routes to key's shard.
func (p *Pool) Fill(key types.OrderKey, lastQty decimal.Decimal) (book.FillDelta, error) {
	return p.route(key).Fill(key, lastQty)
}

// ReconcileAll runs Reconcile concurrently across every shard and returns
// the first drift or error encountered — independent per-shard work with no
// state shared between them, the textbook errgroup.WithContext fan-out.
func (p *Pool) ReconcileAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, shard := range p.shards {
		shard := shard
		g.Go(func() error {
			drift := shard.Reconcile()
			for metricID, buckets := range drift {
				if len(buckets) > 0 {
					return riskerr.New(riskerr.KindProtocolViolation, "aggregation drift detected").WithField(metricID)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// CleanupTerminalAll runs CleanupTerminal concurrently across every shard
// and returns the total number of orders removed.
func (p *Pool) CleanupTerminalAll(ctx context.Context) (int, error) {
	counts := make([]int, len(p.shards))
	g, _ := errgroup.WithContext(ctx)
	for i, shard := range p.shards {
		i, shard := i, shard
		g.Go(func() error {
			counts[i] = shard.CleanupTerminal()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}
