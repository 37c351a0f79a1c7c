package core

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry[string]()
	a := r.Add("a")
	b := r.Add("b")
	r.Add("c")

	assert.NotEqual(t, a, b)
	assert.Equal(t, []string{"a", "b", "c"}, r.Snapshot())

	require.NoError(t, r.Remove(b))
	assert.Equal(t, []string{"a", "c"}, r.Snapshot())
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(a)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestRegistryUnknownID(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1)
	gen := r.Generation()

	err := r.Remove(uuid.New())
	assert.True(t, errors.Is(err, ErrRegistryNotFound))
	assert.Equal(t, gen, r.Generation())

	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestRegistryEachStops(t *testing.T) {
	r := NewRegistry[int]()
	for i := 0; i < 5; i++ {
		r.Add(i)
	}
	visited := 0
	r.Each(func(_ uuid.UUID, v int) bool {
		visited++
		return v < 2
	})
	assert.Equal(t, 3, visited)
}
