package services

import (
	"context"
	"log"
	"sync"
	"time"

	"campuslink/internal/utils"
)

// RecountResult reports the counters of a target before and after a recount.
type RecountResult struct {
	Before   Counters
	After    Counters
	ThreadID string
}

func (r RecountResult) Drifted() bool {
	return r.Before != r.After
}

// CounterSource recomputes counters from the vote rows.
type CounterSource interface {
	RecountTarget(ctx context.Context, target Target) (RecountResult, error)
	// TouchedTargets lists targets with votes changed since the given time. Zero time lists all.
	TouchedTargets(ctx context.Context, since time.Time) ([]Target, error)
}

const (
	reconcileQueueSize = 1000
	reconcileBatchSize = 50
)

// Reconciler recounts targets after votes so incremental counters cannot drift for long.
type Reconciler struct {
	source   CounterSource
	cache    utils.Cache
	interval time.Duration

	queue   chan Target
	pending map[Target]bool
	mu      sync.Mutex
}

// NewReconciler creates a reconciler. The batch worker starts with Start.
func NewReconciler(source CounterSource, cache utils.Cache, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Reconciler{
		source:   source,
		cache:    cache,
		interval: interval,
		queue:    make(chan Target, reconcileQueueSize),
		pending:  make(map[Target]bool),
	}
}

// Schedule queues target for a recount. Targets already queued are skipped and a full
// queue drops the request.
func (r *Reconciler) Schedule(target Target) {
	r.mu.Lock()
	if r.pending[target] {
		r.mu.Unlock()
		return
	}
	r.pending[target] = true
	r.mu.Unlock()

	select {
	case r.queue <- target:
	default:
		r.mu.Lock()
		delete(r.pending, target)
		r.mu.Unlock()
		log.Printf("Reconcile queue full, skipping %s", target)
	}
}

// Start runs the batch worker until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	go r.worker(ctx)
}

func (r *Reconciler) worker(ctx context.Context) {
	batch := make([]Target, 0, reconcileBatchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case target := <-r.queue:
			batch = append(batch, target)
			if len(batch) >= reconcileBatchSize {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Reconciler) processBatch(ctx context.Context, targets []Target) {
	for _, target := range targets {
		r.mu.Lock()
		delete(r.pending, target)
		r.mu.Unlock()

		if _, err := r.recount(ctx, target); err != nil {
			log.Printf("Reconcile %s failed: %v", target, err)
		}
	}
}

func (r *Reconciler) recount(ctx context.Context, target Target) (bool, error) {
	res, err := r.source.RecountTarget(ctx, target)
	if err != nil {
		return false, err
	}
	if !res.Drifted() {
		return false, nil
	}
	log.Printf("Counters of %s drifted: %+v -> %+v", target, res.Before, res.After)
	if r.cache != nil && res.ThreadID != "" {
		r.cache.Delete(ctx, utils.ThreadCacheKey(res.ThreadID))
	}
	return true, nil
}

// ReconcileAll recounts every target with votes and returns how many had drifted.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	return r.reconcileSince(ctx, time.Time{})
}

func (r *Reconciler) reconcileSince(ctx context.Context, since time.Time) (int, error) {
	targets, err := r.source.TouchedTargets(ctx, since)
	if err != nil {
		return 0, err
	}
	drifted := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return drifted, err
		}
		changed, err := r.recount(ctx, target)
		if err != nil {
			return drifted, err
		}
		if changed {
			drifted++
		}
	}
	return drifted, nil
}

// StartScheduled sweeps targets voted on in the last 7 days every day at 3am.
func (r *Reconciler) StartScheduled(ctx context.Context) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			log.Println("Starting scheduled counter reconciliation...")
			drifted, err := r.reconcileSince(ctx, time.Now().AddDate(0, 0, -7))
			if err != nil {
				log.Printf("Scheduled reconciliation failed: %v", err)
				continue
			}
			log.Printf("Scheduled reconciliation done, %d targets corrected", drifted)
		}
	}()
}
