package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskStatus(t *testing.T) {
	st, err := ParseTaskStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseTaskStatus("nope")
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPriorityWeight(t *testing.T) {
	assert.Equal(t, 25, PriorityLow.Weight())
	assert.Equal(t, 50, PriorityMedium.Weight())
	assert.Equal(t, 75, PriorityHigh.Weight())
	assert.Equal(t, 100, PriorityCritical.Weight())

	p, err := ParsePriority("critical")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestLevelParentChain(t *testing.T) {
	parent, ok := LevelTask.Parent()
	assert.True(t, ok)
	assert.Equal(t, LevelBranch, parent)

	parent, ok = LevelBranch.Parent()
	assert.True(t, ok)
	assert.Equal(t, LevelProject, parent)

	parent, ok = LevelProject.Parent()
	assert.True(t, ok)
	assert.Equal(t, LevelGlobal, parent)

	_, ok = LevelGlobal.Parent()
	assert.False(t, ok)
}

func TestLevelDepthOrdering(t *testing.T) {
	assert.Less(t, LevelGlobal.Depth(), LevelProject.Depth())
	assert.Less(t, LevelProject.Depth(), LevelBranch.Depth())
	assert.Less(t, LevelBranch.Depth(), LevelTask.Depth())
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := ParseLevel("galaxy")
	assert.Error(t, err)
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("coding")
	require.NoError(t, err)
	assert.Equal(t, CapabilityCoding, c)

	_, err = ParseCapability("telekinesis")
	assert.Error(t, err)
}

func TestParseEntityStatus(t *testing.T) {
	s, err := ParseEntityStatus("archived")
	require.NoError(t, err)
	assert.Equal(t, EntityArchived, s)

	_, err = ParseEntityStatus("deleted")
	assert.Error(t, err)
}

func TestNewProducesDistinctIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
