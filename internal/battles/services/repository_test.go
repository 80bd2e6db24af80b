package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBattleIDStrings(t *testing.T) {
	raw := []interface{}{"b-2", "b-1", 42, nil, "b-3"}
	assert.Equal(t, []string{"b-2", "b-1", "b-3"}, battleIDStrings(raw),
		"non-string distinct values are dropped")
	assert.Empty(t, battleIDStrings(nil))
}

func TestUnionBattleIDs(t *testing.T) {
	// Participant rows and killmail-edge lookups overlap; the union must be
	// deduplicated and sorted for stable paging.
	got := unionBattleIDs(
		[]string{"b-3", "b-1"},
		[]string{"b-2", "b-1", ""},
	)
	assert.Equal(t, []string{"b-1", "b-2", "b-3"}, got)

	assert.Empty(t, unionBattleIDs(nil, nil))
	assert.Equal(t, []string{"b-1"}, unionBattleIDs([]string{"b-1", "b-1"}))
}
