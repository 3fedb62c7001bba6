package device

import "slices"

// Snapshot is the set of removable drive mount points seen in one poll.
type Snapshot struct {
	set   map[string]struct{}
	order []string
}

func NewSnapshot(paths []string) Snapshot {
	s := Snapshot{set: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if _, ok := s.set[p]; ok {
			continue
		}
		s.set[p] = struct{}{}
		s.order = append(s.order, p)
	}
	return s
}

func (s Snapshot) Has(path string) bool {
	_, ok := s.set[path]
	return ok
}

func (s Snapshot) Len() int {
	return len(s.order)
}

// Paths returns the mount points in enumeration order.
func (s Snapshot) Paths() []string {
	return slices.Clone(s.order)
}

// NewSince returns the paths in s that are absent from prev, in s's order.
func (s Snapshot) NewSince(prev Snapshot) []string {
	var added []string
	for _, p := range s.order {
		if !prev.Has(p) {
			added = append(added, p)
		}
	}
	return added
}
