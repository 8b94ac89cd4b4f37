package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/core"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	s.Push(NewNumberFromInt64(1))
	s.Push(NewString("two"))

	assert.Equal(t, 2, s.Len())

	top, err := s.Pop()
	require.NoError(t, err)
	assert.True(t, top.Equals(NewString("two")))

	top, err = s.Pop()
	require.NoError(t, err)
	assert.True(t, top.Equals(NewNumberFromInt64(1)))
}

func TestStackUnderflow(t *testing.T) {
	s := NewStack()

	_, err := s.Pop()
	assert.ErrorIs(t, err, core.ErrStackUnderflow)

	_, err = s.Peek()
	assert.ErrorIs(t, err, core.ErrStackUnderflow)

	s.Push(NewBool(true))
	assert.ErrorIs(t, s.Swap(), core.ErrStackUnderflow)
}

func TestStackSwap(t *testing.T) {
	s := NewStack()
	s.Push(NewString("bottom"))
	s.Push(NewString("top"))
	require.NoError(t, s.Swap())

	top, err := s.Pop()
	require.NoError(t, err)
	assert.True(t, top.Equals(NewString("bottom")))
}

func TestPopCopiesStructs(t *testing.T) {
	s := NewStack()
	original := NewStruct(StructField{Name: "n", Value: NewNumberFromInt64(1)})
	s.Push(original)
	s.Push(original) // same pointer twice

	popped, err := s.Pop()
	require.NoError(t, err)
	require.NoError(t, popped.SetField("n", NewNumberFromInt64(99)))

	// the copy the VM handed out does not alias what is still stacked
	remaining, err := s.Pop()
	require.NoError(t, err)
	v, err := remaining.Field("n")
	require.NoError(t, err)
	n, err := v.AsNumber()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.Int64())
}

func TestItemsSnapshotsBottomFirst(t *testing.T) {
	s := NewStack()
	s.Push(NewNumberFromInt64(1))
	s.Push(NewNumberFromInt64(2))

	items := s.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].Equals(NewNumberFromInt64(1)))
	assert.True(t, items[1].Equals(NewNumberFromInt64(2)))
	assert.Equal(t, 2, s.Len())
}
