package member

// Set is an unordered collection of members scoped to one resource.
type Set struct {
	items map[Member]struct{}
}

// NewSet creates a set holding the given members.
func NewSet(members ...Member) Set {
	s := Set{items: make(map[Member]struct{}, len(members))}
	for _, m := range members {
		s.items[m] = struct{}{}
	}
	return s
}

// Add inserts m. Adding to a zero Set allocates it.
func (s *Set) Add(m Member) {
	if s.items == nil {
		s.items = make(map[Member]struct{})
	}
	s.items[m] = struct{}{}
}

// Has reports whether m is in the set.
func (s Set) Has(m Member) bool {
	_, ok := s.items[m]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s.items)
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []Member {
	out := make([]Member, 0, len(s.items))
	for m := range s.items {
		out = append(out, m)
	}
	return Sort(out)
}

// Minus returns the members of s that are not in other, ascending.
func (s Set) Minus(other Set) []Member {
	out := make([]Member, 0)
	for m := range s.items {
		if !other.Has(m) {
			out = append(out, m)
		}
	}
	return Sort(out)
}

// Diff computes the additions (desired minus remote) and removals
// (remote minus desired) needed to make remote equal desired.
func Diff(desired, remote Set) (toAdd, toRemove []Member) {
	return desired.Minus(remote), remote.Minus(desired)
}

// Without returns members in order, skipping any contained in exclude.
func Without(members []Member, exclude Set) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if !exclude.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Chunk splits members into consecutive batches of at most size members.
func Chunk(members []Member, size int) [][]Member {
	if size <= 0 {
		size = len(members)
	}
	var out [][]Member
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		out = append(out, members[start:end])
	}
	return out
}
