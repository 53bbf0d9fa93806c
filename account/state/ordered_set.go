package state

import (
	"errors"
)

// Errors returned by OrderedSet mutations. Callers decide whether a duplicate add is a hard failure (install
// paths reject the whole operation) or tolerable.
var (
	// ErrDuplicateValue indicates an added value is already present in the set.
	ErrDuplicateValue = errors.New("value is already present in the set")

	// ErrSentinelValue indicates an attempt to add the zero value, which the set reserves as its "absent"
	// sentinel and can never store.
	ErrSentinelValue = errors.New("the zero value is reserved and cannot be added to the set")
)

// setNode is one linked-list node of an OrderedSet. Nodes are doubly linked so removal can splice a node out
// without scanning for its predecessor.
type setNode[T comparable] struct {
	// value is the stored value.
	value T

	// flag is the auxiliary marker bit callers may attach to the value.
	flag bool

	// prev and next link the node into the set's insertion-ordered list.
	prev *setNode[T]
	next *setNode[T]
}

// OrderedSet is a collection of unique fixed-width values with O(1) membership tests, O(1) removal, and
// deterministic iteration in insertion order. Each stored value additionally carries one auxiliary flag bit,
// so callers can attach a boolean marker without maintaining a parallel map. The zero value of T is reserved
// as a sentinel and cannot be stored.
//
// The set performs no internal locking; the account execution model is single-threaded.
type OrderedSet[T comparable] struct {
	// head and tail delimit the insertion-ordered list, oldest to newest.
	head *setNode[T]
	tail *setNode[T]

	// nodes locates a value's node in O(1).
	nodes map[T]*setNode[T]
}

// NewOrderedSet creates an empty OrderedSet.
func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{
		nodes: make(map[T]*setNode[T]),
	}
}

// Add appends a value to the set with a cleared flag. It returns ErrSentinelValue if the value is the
// reserved zero value, or ErrDuplicateValue if the value is already present. The set is unchanged on error.
func (s *OrderedSet[T]) Add(value T) error {
	return s.AddFlagged(value, false)
}

// AddFlagged appends a value to the set with the provided auxiliary flag. Error semantics match Add.
func (s *OrderedSet[T]) AddFlagged(value T, flag bool) error {
	// Reject the reserved sentinel value.
	var zero T
	if value == zero {
		return ErrSentinelValue
	}

	// Reject duplicates explicitly; callers decide how to surface this.
	if _, ok := s.nodes[value]; ok {
		return ErrDuplicateValue
	}

	// Link a new node at the tail so iteration yields insertion order.
	node := &setNode[T]{value: value, flag: flag, prev: s.tail}
	if s.tail != nil {
		s.tail.next = node
	} else {
		s.head = node
	}
	s.tail = node
	s.nodes[value] = node
	return nil
}

// Remove splices a value out of the set, returning false as a no-op if the value is absent.
func (s *OrderedSet[T]) Remove(value T) bool {
	node, ok := s.nodes[value]
	if !ok {
		return false
	}

	// Splice the node out by rewriting its neighbors' links.
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		s.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		s.tail = node.prev
	}
	delete(s.nodes, value)
	return true
}

// Contains indicates whether a value is present in the set.
func (s *OrderedSet[T]) Contains(value T) bool {
	_, ok := s.nodes[value]
	return ok
}

// Flagged returns the auxiliary flag attached to a value. The second return indicates whether the value is
// present at all.
func (s *OrderedSet[T]) Flagged(value T) (bool, bool) {
	node, ok := s.nodes[value]
	if !ok {
		return false, false
	}
	return node.flag, true
}

// SetFlag updates the auxiliary flag attached to a value, returning false if the value is absent.
func (s *OrderedSet[T]) SetFlag(value T, flag bool) bool {
	node, ok := s.nodes[value]
	if !ok {
		return false
	}
	node.flag = flag
	return true
}

// Len returns the number of values in the set.
func (s *OrderedSet[T]) Len() int {
	return len(s.nodes)
}

// Values returns the set's values in insertion order (oldest first). The returned slice is owned by the
// caller; mutating it does not affect the set.
func (s *OrderedSet[T]) Values() []T {
	values := make([]T, 0, len(s.nodes))
	for node := s.head; node != nil; node = node.next {
		values = append(values, node.value)
	}
	return values
}

// ValuesReversed returns the set's values in reverse insertion order (newest first).
func (s *OrderedSet[T]) ValuesReversed() []T {
	values := make([]T, 0, len(s.nodes))
	for node := s.tail; node != nil; node = node.prev {
		values = append(values, node.value)
	}
	return values
}

// Clear removes all values from the set.
func (s *OrderedSet[T]) Clear() {
	s.head = nil
	s.tail = nil
	s.nodes = make(map[T]*setNode[T])
}

// flaggedValue is one (value, flag) pair of a set's captured state.
type flaggedValue[T comparable] struct {
	value T
	flag  bool
}

// captureState records the set's full contents in insertion order, for use by the storage undo journal.
func (s *OrderedSet[T]) captureState() []flaggedValue[T] {
	captured := make([]flaggedValue[T], 0, len(s.nodes))
	for node := s.head; node != nil; node = node.next {
		captured = append(captured, flaggedValue[T]{value: node.value, flag: node.flag})
	}
	return captured
}

// restoreState replaces the set's contents with a previously captured state, preserving the captured order.
func (s *OrderedSet[T]) restoreState(captured []flaggedValue[T]) {
	s.Clear()
	for _, fv := range captured {
		// Captured states originate from a valid set, so re-adding cannot fail.
		_ = s.AddFlagged(fv.value, fv.flag)
	}
}
