package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sustech/latch/internal/levels"
)

func TestGoalSet_Union(t *testing.T) {
	a := NewGoalSet("identify_latch")
	b := NewGoalSet("propose_fix", "identify_latch")

	u := a.Union(b)

	assert.Equal(t, NewGoalSet("identify_latch", "propose_fix"), u)
	assert.Equal(t, 1, a.Len(), "union must not mutate its receiver")
}

func TestGoalSet_NilIsEmpty(t *testing.T) {
	var s GoalSet
	assert.False(t, s.Has("x"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, NewGoalSet("x"), s.Union(NewGoalSet("x")))
}

func TestGoalSet_Difference(t *testing.T) {
	now := NewGoalSet("identify_latch", "explain_harm")
	before := NewGoalSet("identify_latch")
	assert.Equal(t, NewGoalSet("explain_harm"), now.Difference(before))
}

func TestGoalSet_SortedFollowsDeclarationOrder(t *testing.T) {
	l, _ := levels.Default().Lookup("level-1")
	s := NewGoalSet("propose_fix", "identify_latch", "zz_extra")

	assert.Equal(t, []string{"identify_latch", "propose_fix", "zz_extra"}, s.Sorted(l))
	assert.Equal(t, []string{"identify_latch", "propose_fix", "zz_extra"}, s.Sorted(nil))
}

func TestGoalSet_Covers(t *testing.T) {
	l, _ := levels.Default().Lookup("level-1")

	assert.False(t, NewGoalSet("identify_latch", "explain_harm").Covers(l))
	assert.True(t, NewGoalSet("identify_latch", "explain_harm", "propose_fix").Covers(l))
	assert.False(t, NewGoalSet().Covers(&levels.Level{}))
}
