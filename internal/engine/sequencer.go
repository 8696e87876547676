// SPDX-License-Identifier: MPL-2.0

package engine

import "sync"

// sequencer runs tasks in FIFO order per key. Each key with pending work has
// exactly one goroutine draining its queue; different keys run in parallel.
type sequencer struct {
	mu sync.Mutex
	// queues holds pending tasks. A key is present while its drainer runs.
	queues map[string][]func()
	// closed makes submit a no-op so that no wg.Add races close's Wait.
	closed bool
	wg     sync.WaitGroup
}

func newSequencer() *sequencer {
	return &sequencer{queues: make(map[string][]func())}
}

// submit queues task behind the pending tasks of key. It reports false,
// dropping the task, once the sequencer is closed.
func (s *sequencer) submit(key string, task func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	queue, running := s.queues[key]
	s.queues[key] = append(queue, task)
	if running {
		s.mu.Unlock()
		return true
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(key)
	return true
}

func (s *sequencer) drain(key string) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		task := queue[0]
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		task()
	}
}

// wait blocks until every submitted task has finished. Callers must not
// submit concurrently; use close during shutdown.
func (s *sequencer) wait() {
	s.wg.Wait()
}

// close rejects further tasks and waits for the queued ones.
func (s *sequencer) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
