package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakeCounterSource struct {
	mu       sync.Mutex
	recounts map[Target]int
	drift    map[Target]RecountResult
	targets  []Target
	since    []time.Time
	done     chan Target
	err      error
}

func newFakeCounterSource() *fakeCounterSource {
	return &fakeCounterSource{
		recounts: make(map[Target]int),
		drift:    make(map[Target]RecountResult),
		done:     make(chan Target, 100),
	}
}

func (f *fakeCounterSource) RecountTarget(ctx context.Context, target Target) (RecountResult, error) {
	f.mu.Lock()
	f.recounts[target]++
	res, err := f.drift[target], f.err
	f.mu.Unlock()
	f.done <- target
	return res, err
}

func (f *fakeCounterSource) TouchedTargets(ctx context.Context, since time.Time) ([]Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	return f.targets, nil
}

func (f *fakeCounterSource) count(target Target) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recounts[target]
}

func TestReconcilerDedupsPendingTargets(t *testing.T) {
	source := newFakeCounterSource()
	r := NewReconciler(source, nil, 10*time.Millisecond)
	target := Target{Kind: TargetComment, ID: "c1"}

	for i := 0; i < 3; i++ {
		r.Schedule(target)
	}
	if got := len(r.queue); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	select {
	case <-source.done:
	case <-time.After(2 * time.Second):
		t.Fatal("target was never recounted")
	}
	if got := source.count(target); got != 1 {
		t.Errorf("recounts = %d, want 1", got)
	}

	// once processed the target can be queued again
	r.Schedule(target)
	select {
	case <-source.done:
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled target was never recounted")
	}
}

func TestReconcilerDropsWhenQueueFull(t *testing.T) {
	r := NewReconciler(newFakeCounterSource(), nil, time.Second)
	for i := 0; i < reconcileQueueSize+10; i++ {
		r.Schedule(Target{Kind: TargetPost, ID: fmt.Sprintf("p%d", i)})
	}
	if got := len(r.queue); got != reconcileQueueSize {
		t.Errorf("queue length = %d, want %d", got, reconcileQueueSize)
	}
	r.mu.Lock()
	pending := len(r.pending)
	r.mu.Unlock()
	if pending != reconcileQueueSize {
		t.Errorf("pending = %d, dropped targets must not stay pending", pending)
	}
}

func TestReconcileAllCountsDrift(t *testing.T) {
	source := newFakeCounterSource()
	cache := &recordingCache{}
	clean := Target{Kind: TargetPost, ID: "p1"}
	drifted := Target{Kind: TargetComment, ID: "c1"}
	source.targets = []Target{clean, drifted}
	source.drift[clean] = RecountResult{Before: Counters{2, 0}, After: Counters{2, 0}, ThreadID: "p1"}
	source.drift[drifted] = RecountResult{Before: Counters{3, 1}, After: Counters{2, 1}, ThreadID: "p7"}

	r := NewReconciler(source, cache, time.Second)
	n, err := r.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll() error = %v", err)
	}
	if n != 1 {
		t.Errorf("drifted = %d, want 1", n)
	}
	if !source.since[0].IsZero() {
		t.Errorf("ReconcileAll should list every target, since = %v", source.since[0])
	}
	keys := cache.deletedKeys()
	if len(keys) != 1 || keys[0] != "forum:thread:p7" {
		t.Errorf("deleted keys = %v", keys)
	}
}

func TestReconcileAllStopsOnCancel(t *testing.T) {
	source := newFakeCounterSource()
	source.targets = []Target{{Kind: TargetPost, ID: "p1"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReconciler(source, nil, time.Second).ReconcileAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReconcileAll() error = %v, want context.Canceled", err)
	}
}
