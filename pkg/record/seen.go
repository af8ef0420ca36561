package record

import "sort"

// Seen is the set of target IDs a run has already handled.
// A run owns its Seen value and passes it explicitly; it is never global.
type Seen map[string]struct{}

// NewSeen builds a set from ids
func NewSeen(ids ...string) Seen {
	s := make(Seen, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set
func (s Seen) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id, reporting false if it was already present
func (s Seen) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// IDs returns the members in sorted order
func (s Seen) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
