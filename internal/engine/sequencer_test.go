// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSequencer_UnrelatedKeysRunInParallel(t *testing.T) {
	t.Parallel()

	s := newSequencer()
	block := make(chan struct{})
	var fastDone atomic.Bool

	s.submit("slow", func() { <-block })
	s.submit("fast", func() { fastDone.Store(true) })

	deadline := time.After(2 * time.Second)
	for !fastDone.Load() {
		select {
		case <-deadline:
			close(block)
			t.Fatal("task for an unrelated key was blocked by a slow one")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(block)
	s.wait()
}

func TestSequencer_SameKeyIsFIFO(t *testing.T) {
	t.Parallel()

	s := newSequencer()
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		s.submit("k", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	s.wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("task order = %v, want ascending", got)
		}
	}
	if len(got) != 50 {
		t.Fatalf("ran %d tasks, want 50", len(got))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queues) != 0 {
		t.Errorf("idle queues not discarded: %v", s.queues)
	}
}

func TestSequencer_CloseDrainsAndRejects(t *testing.T) {
	t.Parallel()

	s := newSequencer()
	var ran atomic.Int32
	for range 10 {
		s.submit("k", func() { ran.Add(1) })
	}

	// Submitters racing with shutdown, as watcher timers do.
	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 100 {
				s.submit("late", func() {})
			}
		})
	}
	s.close()
	wg.Wait()

	if got := ran.Load(); got != 10 {
		t.Errorf("ran %d tasks queued before close, want 10", got)
	}
	if s.submit("k", func() { ran.Add(1) }) {
		t.Error("submit() after close = true, want false")
	}
	s.wait()
	if got := ran.Load(); got != 10 {
		t.Errorf("task submitted after close ran (%d)", got)
	}
}
