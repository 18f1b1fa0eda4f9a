package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueWrapsAround(t *testing.T) {
	q := NewRingQueue[int](2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	assert.ErrorIs(t, q.Enqueue(3), ErrQueueFull)

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, q.Enqueue(3))
	p, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, q.Len())

	v, _ = q.Dequeue()
	assert.Equal(t, 2, v)
	v, _ = q.Dequeue()
	assert.Equal(t, 3, v)

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.True(t, q.IsEmpty())
}

func TestRingQueueAt(t *testing.T) {
	q := NewRingQueue[string](3)
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(v))
	}
	_, _ = q.Dequeue()
	require.NoError(t, q.Enqueue("d"))

	assert.Equal(t, "b", q.At(0))
	assert.Equal(t, "d", q.At(2))
	assert.Panics(t, func() { q.At(3) })
}
