package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySlotsInJoinOrder(t *testing.T) {
	r := NewRegistry(2)

	a, err := r.Register("a")
	require.NoError(t, err)
	b, err := r.Register("b")
	require.NoError(t, err)

	assert.Equal(t, 0, a.Slot)
	assert.Equal(t, 1, b.Slot)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryRejectsWhenFull(t *testing.T) {
	r := NewRegistry(2)
	_, _ = r.Register("a")
	_, _ = r.Register("b")

	_, err := r.Register("c")
	require.ErrorIs(t, err, ErrTableFull)
	_, ok := r.Get("c")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryKeepsSlotZeroRetiredWhileSeated(t *testing.T) {
	r := NewRegistry(2)
	_, _ = r.Register("a")
	_, _ = r.Register("b")

	require.True(t, r.Unregister("a"))
	c, err := r.Register("c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Slot, "slot 0 is only handed out to an empty table")

	b, _ := r.Get("b")
	assert.Equal(t, 1, b.Slot, "slot of a connected player never changes")
}

func TestRegistryRestartsSlotsWhenEmpty(t *testing.T) {
	r := NewRegistry(2)
	_, _ = r.Register("a")
	_, _ = r.Register("b")
	require.True(t, r.Unregister("a"))
	require.True(t, r.Unregister("b"))

	c, err := r.Register("c")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Slot)
	d, err := r.Register("d")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Slot)
}

func TestRegistryRejectsBadIDs(t *testing.T) {
	r := NewRegistry(2)
	_, err := r.Register("")
	require.ErrorIs(t, err, ErrEmptyPlayerID)

	_, err = r.Register("a")
	require.NoError(t, err)
	_, err = r.Register("a")
	require.ErrorIs(t, err, ErrDuplicatePlayer)
}

func TestRegistryUnregisterOnce(t *testing.T) {
	r := NewRegistry(2)
	_, _ = r.Register("a")
	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryCountTracksConnections(t *testing.T) {
	r := NewRegistry(2)
	live := map[string]bool{}
	ops := []struct {
		join bool
		id   string
	}{
		{true, "a"}, {true, "b"}, {true, "c"}, {false, "a"}, {true, "c"},
		{false, "b"}, {false, "b"}, {true, "d"}, {false, "c"}, {false, "d"},
	}

	for i, op := range ops {
		if op.join {
			if _, err := r.Register(op.id); err == nil {
				live[op.id] = true
			}
		} else if r.Unregister(op.id) {
			delete(live, op.id)
		}
		require.Equal(t, len(live), r.Count(), fmt.Sprintf("after op %d", i))

		slots := map[int]bool{}
		for _, p := range r.List() {
			require.False(t, slots[p.Slot], "slot %d assigned twice", p.Slot)
			slots[p.Slot] = true
		}
	}
}

func TestRegistryUnlimitedCapacity(t *testing.T) {
	r := NewRegistry(0)
	for i := 0; i < 5; i++ {
		p, err := r.Register(fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.Equal(t, i, p.Slot)
	}
}
