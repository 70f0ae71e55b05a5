package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTopics = []string{
	"dp_general", "graph_traversal", "graph_shortest_path", "tree_general",
	"search_binary", "ds_segtree", "math_nt", "string_general", "tech_greedy", "tech_sorting",
}

// denseCatalog has every topic at every difficulty from 1 to 100.
func denseCatalog() *Catalog {
	var problems []Problem
	for _, topic := range testTopics {
		for d := 1; d <= 100; d++ {
			problems = append(problems, Problem{
				ID:         fmt.Sprintf("%s-%d", topic, d),
				Name:       fmt.Sprintf("%s %d", topic, d),
				URL:        "https://example.com/" + topic,
				Source:     "codeforces",
				Difficulty: d,
				PatternID:  strPtr(topic),
			})
		}
	}
	return New(problems)
}

func assertUniqueIDs(t *testing.T, items []Selection) {
	t.Helper()
	seen := make(map[string]bool)
	for _, it := range items {
		assert.False(t, seen[it.Problem.ID], "duplicate problem %s", it.Problem.ID)
		seen[it.Problem.ID] = true
	}
}

func TestSelectDiverseWithoutWeakTopics(t *testing.T) {
	s := NewSelector(denseCatalog(), WithSeed(7))

	items := s.Select(SelectRequest{TargetDifficulty: 30, Count: 5, IncludeWeakTopics: true})

	require.Len(t, items, 5)
	assertUniqueIDs(t, items)
	topics := make(map[string]bool)
	for _, it := range items {
		assert.False(t, it.IsWeakTopicProblem)
		assert.Equal(t, 30, it.TargetDifficulty)
		assert.LessOrEqual(t, abs(it.Problem.Difficulty-30), DefaultTolerance)
		topics[it.Topic] = true
	}
	assert.Len(t, topics, 5, "topics are unique while the pool has unused topics")
}

func TestSelectWeakSlice(t *testing.T) {
	s := NewSelector(denseCatalog(), WithSeed(11))
	weak := []string{"graph_traversal", "dp_general", "math_nt", "tree_general"}

	items := s.Select(SelectRequest{
		TargetDifficulty:  40,
		Count:             6,
		WeakTopics:        weak,
		IncludeWeakTopics: true,
	})

	require.Len(t, items, 6)
	assertUniqueIDs(t, items)

	// min(4, max(1, 6/3)) = 2 weak slots, taken from the head of the list.
	require.True(t, items[0].IsWeakTopicProblem)
	require.True(t, items[1].IsWeakTopicProblem)
	assert.Equal(t, "graph_traversal", items[0].Topic)
	assert.Equal(t, "dp_general", items[1].Topic)
	for _, it := range items[:2] {
		assert.Equal(t, 30, it.TargetDifficulty)
		assert.LessOrEqual(t, abs(it.Problem.Difficulty-30), DefaultTolerance+weakToleranceBonus)
	}
	for _, it := range items[2:] {
		assert.False(t, it.IsWeakTopicProblem)
		assert.NotEqual(t, "graph_traversal", it.Topic)
		assert.NotEqual(t, "dp_general", it.Topic)
	}
}

func TestSelectWeakTopicsIgnoredWhenExcluded(t *testing.T) {
	s := NewSelector(denseCatalog(), WithSeed(3))

	items := s.Select(SelectRequest{
		TargetDifficulty:  40,
		Count:             3,
		WeakTopics:        []string{"graph_traversal"},
		IncludeWeakTopics: false,
	})

	require.Len(t, items, 3)
	for _, it := range items {
		assert.False(t, it.IsWeakTopicProblem)
	}
}

func TestSelectWeakTopicWidensThenGivesUp(t *testing.T) {
	problems := []Problem{
		// Only reachable with the doubled band: |45-30| = 15 > 10, <= 20.
		{ID: "w-far", URL: "u", Difficulty: 45, PatternID: strPtr("graph_mst")},
	}
	for i := 0; i < 5; i++ {
		problems = append(problems, Problem{ID: fmt.Sprintf("r-%d", i), URL: "u", Difficulty: 40, PatternID: strPtr(fmt.Sprintf("t%d", i))})
	}
	s := NewSelector(New(problems), WithSeed(5))

	items := s.Select(SelectRequest{
		TargetDifficulty:  40,
		Count:             3,
		WeakTopics:        []string{"graph_mst"},
		IncludeWeakTopics: true,
	})
	require.NotEmpty(t, items)
	assert.Equal(t, "w-far", items[0].Problem.ID)
	assert.True(t, items[0].IsWeakTopicProblem)

	// Too far even for the doubled band: the topic contributes nothing.
	items = s.Select(SelectRequest{
		TargetDifficulty:  80,
		Count:             3,
		WeakTopics:        []string{"graph_mst"},
		IncludeWeakTopics: true,
	})
	for _, it := range items {
		assert.False(t, it.IsWeakTopicProblem)
	}
}

func TestSelectHonoursExclusions(t *testing.T) {
	c := denseCatalog()
	excluded := make(map[string]struct{})
	for _, topic := range testTopics {
		for d := 25; d <= 35; d++ {
			if d != 30 {
				excluded[fmt.Sprintf("%s-%d", topic, d)] = struct{}{}
			}
		}
	}
	s := NewSelector(c, WithSeed(9))

	items := s.Select(SelectRequest{TargetDifficulty: 30, Count: 8, ExcludedIDs: excluded})

	require.Len(t, items, 8)
	for _, it := range items {
		_, isExcluded := excluded[it.Problem.ID]
		assert.False(t, isExcluded)
		assert.Equal(t, 30, it.Problem.Difficulty)
	}
}

func TestSelectAllowsTopicRepeatsWhenPoolExhausted(t *testing.T) {
	var problems []Problem
	for _, topic := range []string{"a", "b"} {
		for d := 28; d <= 32; d++ {
			problems = append(problems, Problem{ID: fmt.Sprintf("%s-%d", topic, d), URL: "u", Difficulty: d, PatternID: strPtr(topic)})
		}
	}
	s := NewSelector(New(problems), WithSeed(21))

	items := s.Select(SelectRequest{TargetDifficulty: 30, Count: 6})

	require.Len(t, items, 6)
	assertUniqueIDs(t, items)
	for _, it := range items {
		assert.False(t, it.IsWeakTopicProblem)
		assert.Contains(t, []string{"a", "b"}, it.Topic)
	}
}

func TestSelectFallbackRelaxesTopicAndBand(t *testing.T) {
	// Nothing within +-5 of 50, but plenty within +-15.
	var problems []Problem
	for i := 0; i < 6; i++ {
		problems = append(problems, Problem{ID: fmt.Sprintf("low-%d", i), URL: "u", Difficulty: 38 + i%2, PatternID: strPtr("dp_general")})
	}
	s := NewSelector(New(problems), WithSeed(13))

	items := s.Select(SelectRequest{TargetDifficulty: 50, Count: 4})

	require.Len(t, items, 4)
	assertUniqueIDs(t, items)
	for _, it := range items {
		assert.Equal(t, "dp_general", it.Topic)
		assert.Equal(t, 50, it.TargetDifficulty)
		assert.LessOrEqual(t, abs(it.Problem.Difficulty-50), DefaultTolerance*fallbackToleranceFactor)
	}
}

func TestSelectReturnsShortfallInsteadOfFailing(t *testing.T) {
	problems := []Problem{
		{ID: "only-1", URL: "u", Difficulty: 30, PatternID: strPtr("x")},
		{ID: "only-2", URL: "u", Difficulty: 31, PatternID: strPtr("y")},
		{ID: "far", URL: "u", Difficulty: 90, PatternID: strPtr("z")},
	}
	s := NewSelector(New(problems), WithSeed(1))

	items := s.Select(SelectRequest{TargetDifficulty: 30, Count: 5})

	assert.Len(t, items, 2)
	assertUniqueIDs(t, items)
	assert.Empty(t, s.Select(SelectRequest{TargetDifficulty: 30, Count: 0}))
}

func TestSelectIsDeterministicWithSeed(t *testing.T) {
	c := denseCatalog()
	req := SelectRequest{TargetDifficulty: 45, Count: 7, WeakTopics: []string{"ds_segtree"}, IncludeWeakTopics: true}

	a := NewSelector(c, WithSeed(99)).Select(req)
	b := NewSelector(c, WithSeed(99)).Select(req)

	require.Len(t, a, 7)
	require.Len(t, b, 7)
	for i := range a {
		assert.Equal(t, a[i].Problem.ID, b[i].Problem.ID)
	}
}

func TestSelectorOptions(t *testing.T) {
	s := NewSelector(denseCatalog(), WithTolerance(2), WithAttemptFactor(3), WithWeakOffset(20), WithSeed(4))
	assert.Equal(t, 2, s.Tolerance())

	items := s.Select(SelectRequest{TargetDifficulty: 60, Count: 3, WeakTopics: []string{"math_nt"}, IncludeWeakTopics: true})
	require.Len(t, items, 3)
	assert.True(t, items[0].IsWeakTopicProblem)
	assert.Equal(t, 40, items[0].TargetDifficulty)
	assert.LessOrEqual(t, abs(items[0].Problem.Difficulty-40), 2+weakToleranceBonus)
	for _, it := range items[1:] {
		assert.LessOrEqual(t, abs(it.Problem.Difficulty-60), 2)
	}
}
