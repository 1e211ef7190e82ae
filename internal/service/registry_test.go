package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
)

func TestRegistry_OpenAndGet(t *testing.T) {
	r := NewRegistry(nil, guard.New())

	s := r.Open(testIdentity, map[string]any{"bpm": 72})
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, map[string]any{"bpm": 72}, s.HealthData())

	got, err := r.Get(testIdentity, s.LocalID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get(domain.Identity{UUID: "someone-else", HospitalID: "h-9"}, s.LocalID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.Get(testIdentity, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_Close(t *testing.T) {
	g := guard.New()
	r := NewRegistry(nil, g)

	var mu sync.Mutex
	var closed []string
	r.OnClose(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, id)
	})

	s := r.Open(testIdentity, nil)
	release, err := g.Acquire(s.LocalID())
	require.NoError(t, err)
	defer release()

	assert.ErrorIs(t, r.Close(domain.Identity{UUID: "intruder"}, s.LocalID()), ErrSessionNotFound)
	assert.False(t, s.Closed())

	require.NoError(t, r.Close(testIdentity, s.LocalID()))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []string{s.LocalID()}, closed)

	assert.ErrorIs(t, r.Close(testIdentity, s.LocalID()), ErrSessionNotFound)
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(nil, nil)

	a := r.Open(testIdentity, nil)
	b := r.Open(domain.Identity{UUID: "u-2", HospitalID: "h-9"}, nil)

	r.CloseAll()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, r.Len())
}
