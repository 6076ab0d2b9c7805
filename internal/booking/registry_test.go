package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOpenGetClose(t *testing.T) {
	registry := NewRegistry(time.Minute)

	form := registry.Open(testSpace)
	require.NotEmpty(t, form.ID())
	assert.Equal(t, 1, registry.Len())

	got, ok := registry.Get(form.ID())
	require.True(t, ok)
	assert.Same(t, form, got)

	assert.True(t, registry.Close(form.ID()))
	assert.False(t, registry.Close(form.ID()))
	_, ok = registry.Get(form.ID())
	assert.False(t, ok)
}

func TestRegistrySweepDropsIdleForms(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.Local)
	registry := NewRegistry(10 * time.Minute)
	registry.now = func() time.Time { return now }

	idle := registry.Open(testSpace)
	busy := registry.Open(testSpace)

	now = now.Add(8 * time.Minute)
	_, ok := registry.Get(busy.ID())
	require.True(t, ok)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, registry.Sweep())

	_, ok = registry.Get(idle.ID())
	assert.False(t, ok)
	_, ok = registry.Get(busy.ID())
	assert.True(t, ok)
}

func TestRegistryFormsUseRegistryClock(t *testing.T) {
	registry := NewRegistry(0)
	registry.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.Local) }

	form := registry.Open(testSpace)
	assert.Error(t, form.SelectDate("2026-05-09"))
	assert.NoError(t, form.SelectDate("2026-05-10"))
}

func TestRegistryClear(t *testing.T) {
	registry := NewRegistry(time.Minute)
	registry.Open(testSpace)
	registry.Open(testSpace)

	registry.Clear()
	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, registry.Forms())
}
