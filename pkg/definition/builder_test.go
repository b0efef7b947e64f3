package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/dsm"
)

func TestMachineBuilder(t *testing.T) {
	def, err := NewMachine("player").
		Store("volume", 3).
		State("Idle").Initial().
		To("Playing").On("play").When("hasDisc").Do("countPlay").
		State("Playing").History(0, dsm.Deep).OnEntry("spinUp").
		To("Idle").On("stop").
		ToSelf().On("volumeUp").Do("louder").
		Child("Normal").Initial().
		To("Shuffle").On("shuffle").
		State("Shuffle").
		State("Audio").InRegion(1).Initial().
		Build()
	require.NoError(t, err)

	parsed, err := Parse([]byte(playerYAML))
	require.NoError(t, err)
	assert.Equal(t, parsed, def)
}

func TestMachineBuilder_Navigation(t *testing.T) {
	b := NewMachine("m")
	outer := b.State("Outer").Initial()
	inner := outer.Child("Inner").Initial()

	assert.Same(t, outer, inner.Parent())
	assert.Same(t, outer, outer.Parent(), "top-level states are their own parent")

	inner.Parent().State("Other")
	def, err := b.Build()
	require.NoError(t, err)
	require.Len(t, def.States, 2)
	assert.Equal(t, "Other", def.States[1].Name)
	assert.Equal(t, "Inner", def.Find("Outer").States[0].Name)
}

func TestMachineBuilder_Invalid(t *testing.T) {
	_, err := NewMachine("m").
		State("A").Initial().To("Nowhere").On("go").
		State("B").Initial().
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `targets unknown state "Nowhere"`)
	assert.Contains(t, err.Error(), `already has entry state "A"`)
}

func TestMachineBuilder_BuildsMachine(t *testing.T) {
	def, err := NewMachine("door").
		History(0, dsm.Shallow).
		State("Closed").Initial().To("Open").On("open").
		State("Open").To("Closed").On("close").
		Build()
	require.NoError(t, err)

	m, err := Build(def, Bindings{})
	require.NoError(t, err)
	m.Start()

	assert.True(t, m.ProcessEvent(Event("open", nil)))
	assert.True(t, IsActive(m, "Open"))
	assert.Equal(t, dsm.Shallow, m.History(m.Kind(), 0))
}
