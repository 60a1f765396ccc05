package kv

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory(0)

	v, ok, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	value := []byte(`{"a":1}`)
	require.NoError(t, m.Put(ctx, "k", value))
	value[0] = 'x'

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestMemory_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	require.NoError(t, m.Put(ctx, "a", []byte("12345")))
	require.NoError(t, m.Put(ctx, "b", []byte("12345")))

	err := m.Put(ctx, "c", []byte("1"))
	require.ErrorIs(t, err, ErrStorageFull)
	assert.False(t, errors.Is(err, ErrStorageUnavailable))

	// Replacing a value only counts the difference.
	require.NoError(t, m.Put(ctx, "a", []byte("123")))
	require.NoError(t, m.Put(ctx, "c", []byte("12")))

	_, ok, err := m.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable(cause, "redis get")

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "redis get: storage unavailable: dial tcp: refused", err.Error())

	wrapped := errors.Wrap(Full(nil, "memory put k"), "persist")
	assert.ErrorIs(t, wrapped, ErrStorageFull)
	assert.Equal(t, "persist: memory put k: storage full", wrapped.Error())
}
