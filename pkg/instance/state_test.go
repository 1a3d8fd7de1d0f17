package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	table := Transitions()
	require.Len(t, table, 8)

	names := make(map[string]bool)
	for _, tr := range table {
		assert.True(t, tr.From.Valid())
		assert.True(t, tr.To.Valid())
		names[tr.Name] = true

		found, ok := LookupTransition(tr.From, tr.To)
		require.True(t, ok)
		assert.Equal(t, tr, found)
	}
	assert.Len(t, names, 8)

	_, ok := LookupTransition(StateStopped, StateRunning)
	assert.False(t, ok)
	_, ok = LookupTransition(StatePaused, StateStarted)
	assert.False(t, ok)

	// The returned table is a copy
	table[0].Name = "changed"
	first, _ := LookupTransition(StateNull, StateStopped)
	assert.Equal(t, "create", first.Name)
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateNull, StateStopped, StateStarted, StateRunning, StatePaused} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, State("crashed").Valid())
	assert.False(t, State("").Valid())
}

func TestTransistSoundness(t *testing.T) {
	states := []State{StateNull, StateStopped, StateStarted, StateRunning, StatePaused, State("bogus")}
	h := newHarness(t)

	node, err := h.m.Create("soundness", TypeClient, "", "", false, false)
	require.NoError(t, err)
	stateLeaf := node.GetChild(ChildState)

	for _, current := range states[:5] {
		for _, from := range states {
			for _, to := range states {
				require.NoError(t, stateLeaf.Set(string(current)))

				_, inTable := LookupTransition(from, to)
				want := inTable && from == current

				got := h.m.Transist(node, from, to)
				assert.Equal(t, want, got, "current=%s from=%s to=%s", current, from, to)

				if want {
					assert.Equal(t, to, h.m.State(node))
				} else {
					assert.Equal(t, current, h.m.State(node), "failed transition changed state")
				}
			}
		}
	}
}

func TestTransistRejectsNonInstances(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.m.Transist(nil, StateNull, StateStopped))
	assert.False(t, h.m.Transist(h.root.Node, StateNull, StateStopped))
}
