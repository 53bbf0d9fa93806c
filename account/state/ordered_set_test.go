package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOrderedSetInsertionOrder verifies values iterate in insertion order and in reverse.
func TestOrderedSetInsertionOrder(t *testing.T) {
	set := NewOrderedSet[int]()
	for _, v := range []int{5, 3, 9, 1} {
		assert.NoError(t, set.Add(v))
	}

	assert.EqualValues(t, []int{5, 3, 9, 1}, set.Values())
	assert.EqualValues(t, []int{1, 9, 3, 5}, set.ValuesReversed())
	assert.EqualValues(t, 4, set.Len())
}

// TestOrderedSetDuplicateAndSentinel verifies duplicate and zero-value adds are rejected without mutating
// the set.
func TestOrderedSetDuplicateAndSentinel(t *testing.T) {
	set := NewOrderedSet[int]()
	assert.NoError(t, set.Add(7))

	assert.ErrorIs(t, set.Add(7), ErrDuplicateValue)
	assert.ErrorIs(t, set.Add(0), ErrSentinelValue)
	assert.EqualValues(t, []int{7}, set.Values())
}

// TestOrderedSetRemove verifies removal splices values out of every position while preserving the order of
// the remainder.
func TestOrderedSetRemove(t *testing.T) {
	set := NewOrderedSet[int]()
	for _, v := range []int{1, 2, 3, 4} {
		assert.NoError(t, set.Add(v))
	}

	// Remove from the middle, the head, and the tail.
	assert.True(t, set.Remove(3))
	assert.EqualValues(t, []int{1, 2, 4}, set.Values())
	assert.True(t, set.Remove(1))
	assert.EqualValues(t, []int{2, 4}, set.Values())
	assert.True(t, set.Remove(4))
	assert.EqualValues(t, []int{2}, set.Values())

	// Removing an absent value is a no-op.
	assert.False(t, set.Remove(42))
	assert.EqualValues(t, 1, set.Len())

	// Re-adding a removed value appends it at the tail, it does not recover its old position.
	assert.NoError(t, set.Add(1))
	assert.EqualValues(t, []int{2, 1}, set.Values())
}

// TestOrderedSetFlags verifies the auxiliary flag bit attached to stored values.
func TestOrderedSetFlags(t *testing.T) {
	set := NewOrderedSet[int]()
	assert.NoError(t, set.AddFlagged(1, true))
	assert.NoError(t, set.Add(2))

	flag, present := set.Flagged(1)
	assert.True(t, present)
	assert.True(t, flag)
	flag, present = set.Flagged(2)
	assert.True(t, present)
	assert.False(t, flag)

	// Flags on absent values report absence.
	_, present = set.Flagged(3)
	assert.False(t, present)
	assert.False(t, set.SetFlag(3, true))

	// Updating a flag does not disturb ordering.
	assert.True(t, set.SetFlag(2, true))
	flag, _ = set.Flagged(2)
	assert.True(t, flag)
	assert.EqualValues(t, []int{1, 2}, set.Values())
}

// TestOrderedSetCaptureRestore verifies a captured state round-trips exactly, including flags and order.
func TestOrderedSetCaptureRestore(t *testing.T) {
	set := NewOrderedSet[int]()
	assert.NoError(t, set.AddFlagged(10, true))
	assert.NoError(t, set.Add(20))
	assert.NoError(t, set.AddFlagged(30, true))

	captured := set.captureState()

	// Scramble the set, then restore.
	set.Remove(20)
	assert.NoError(t, set.Add(99))
	set.SetFlag(10, false)
	set.restoreState(captured)

	assert.EqualValues(t, []int{10, 20, 30}, set.Values())
	flag, _ := set.Flagged(10)
	assert.True(t, flag)
	flag, _ = set.Flagged(20)
	assert.False(t, flag)
	assert.False(t, set.Contains(99))
}
