// SPDX-License-Identifier: MPL-2.0

package graph

// orderedSet is a set of paths that iterates in insertion order.
type orderedSet struct {
	keys  []string
	index map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{})}
}

// add inserts key and reports whether it was absent.
func (s *orderedSet) add(key string) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

func (s *orderedSet) remove(key string) {
	if _, ok := s.index[key]; !ok {
		return
	}
	delete(s.index, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return
		}
	}
}

func (s *orderedSet) has(key string) bool {
	_, ok := s.index[key]
	return ok
}

func (s *orderedSet) len() int { return len(s.keys) }

// list returns a copy of the keys in insertion order.
func (s *orderedSet) list() []string {
	if len(s.keys) == 0 {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}
