package graph

import "slices"

// MultiElementType describes the role of an id within a merged group.
type MultiElementType int

const (
	// NotMultiElement ids belong to no group.
	NotMultiElement MultiElementType = iota
	// Head is the canonical member of a group. Only heads participate in
	// connectivity.
	Head
	// Tail members are carried along with their head for provenance.
	Tail
)

func (t MultiElementType) String() string {
	switch t {
	case Head:
		return "head"
	case Tail:
		return "tail"
	default:
		return "none"
	}
}

// multiElements maps every grouped id to its head. An id is a head when it
// is its own representative. Groups are kept flat: merging two groups moves
// every member of the absorbed group under the surviving head, so lookups
// never chase parent pointers.
type multiElements[T ~int32] struct {
	headOf  []T
	members map[T][]T
}

func newMultiElements[T ~int32]() *multiElements[T] {
	return &multiElements[T]{members: make(map[T][]T)}
}

func (m *multiElements[T]) resize(n int) {
	for len(m.headOf) < n {
		m.headOf = append(m.headOf, -1)
	}
}

func (m *multiElements[T]) grouped(id T) bool {
	return int(id) < len(m.headOf) && m.headOf[id] >= 0
}

func (m *multiElements[T]) head(id T) T {
	if m.grouped(id) {
		return m.headOf[id]
	}
	return id
}

func (m *multiElements[T]) typeOf(id T) MultiElementType {
	if !m.grouped(id) {
		return NotMultiElement
	}
	if m.headOf[id] == id {
		return Head
	}
	return Tail
}

// add makes b, together with any group b belongs to, tail members of a's
// group and returns the head.
func (m *multiElements[T]) add(a, b T) T {
	m.resize(int(max(a, b)) + 1)

	ha, hb := m.head(a), m.head(b)
	if ha == hb {
		return ha
	}

	group, ok := m.members[ha]
	if !ok {
		group = []T{ha}
		m.headOf[ha] = ha
	}

	moved, ok := m.members[hb]
	if ok {
		delete(m.members, hb)
	} else {
		moved = []T{hb}
	}

	for _, id := range moved {
		m.headOf[id] = ha
	}
	m.members[ha] = append(group, moved...)

	return ha
}

// remove takes id out of its group. Removing a head promotes the next member;
// a group left with a single member is dissolved.
func (m *multiElements[T]) remove(id T) {
	if !m.grouped(id) {
		return
	}

	h := m.headOf[id]
	group := m.members[h]
	delete(m.members, h)
	m.headOf[id] = -1

	if i := slices.Index(group, id); i >= 0 {
		group = slices.Delete(group, i, i+1)
	}

	if len(group) <= 1 {
		for _, x := range group {
			m.headOf[x] = -1
		}
		return
	}

	newHead := group[0]
	for _, x := range group {
		m.headOf[x] = newHead
	}
	m.members[newHead] = group
}

// membersOf returns every id in id's group, head first, or just id when it is
// not grouped. The result must not be modified.
func (m *multiElements[T]) membersOf(id T) []T {
	if m.grouped(id) {
		return m.members[m.headOf[id]]
	}
	return []T{id}
}

func (m *multiElements[T]) reset() {
	m.headOf = nil
	m.members = make(map[T][]T)
}

func (m *multiElements[T]) clone() *multiElements[T] {
	c := &multiElements[T]{
		headOf:  slices.Clone(m.headOf),
		members: make(map[T][]T, len(m.members)),
	}
	for h, group := range m.members {
		c.members[h] = slices.Clone(group)
	}
	return c
}
