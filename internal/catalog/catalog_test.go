package catalog

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

const sampleCatalog = `{
  "problems": [
    {"id": "cf-1A", "name": "Theatre Square", "url": "https://codeforces.com/problemset/problem/1/A",
     "source": "codeforces", "internal_rating": 12, "primary_skills": ["Math"], "pattern_id": "math_nt"},
    {"id": "cf-4A", "name": "Watermelon", "url": "https://codeforces.com/problemset/problem/4/A",
     "source": "codeforces", "internal_rating": 7, "primary_skills": ["Brute Force"]},
    {"id": "ac-abc1", "name": "Untitled", "url": "https://atcoder.jp/abc1",
     "source": "atcoder", "tags": ["misc"]},
    {"id": "", "name": "No id", "url": "https://example.com"},
    {"id": "no-url", "name": "No url", "url": ""}
  ]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())

	p, ok := c.Get("cf-1A")
	require.True(t, ok)
	assert.Equal(t, 12, p.Difficulty)
	assert.Equal(t, "math_nt", TopicOf(p))

	p, ok = c.Get("cf-4A")
	require.True(t, ok)
	assert.Equal(t, "skill_brute_force", TopicOf(p))

	p, ok = c.Get("ac-abc1")
	require.True(t, ok)
	assert.Equal(t, defaultDifficulty, p.Difficulty, "missing rating falls back to default")
	assert.Equal(t, GeneralTopic, TopicOf(p))

	_, ok = c.Get("no-url")
	assert.False(t, ok)

	assert.Equal(t, []string{"general", "math_nt", "skill_brute_force"}, c.Topics())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNewDropsDuplicatesAndClamps(t *testing.T) {
	c := New([]Problem{
		{ID: "a", URL: "u", Difficulty: 150},
		{ID: "a", URL: "u", Difficulty: 10},
		{ID: "b", URL: "u", Difficulty: -3},
	})

	assert.Equal(t, 2, c.Len())
	a, _ := c.Get("a")
	assert.Equal(t, 100, a.Difficulty)
	b, _ := c.Get("b")
	assert.Equal(t, 1, b.Difficulty)
}

func TestProblemsInRangeWalksBuckets(t *testing.T) {
	var problems []Problem
	for d := 1; d <= 100; d++ {
		problems = append(problems, Problem{ID: "p-" + strconv.Itoa(d), URL: "u", Difficulty: d})
	}
	c := New(problems)

	got := c.ProblemsInRange(13, 27)
	assert.Len(t, got, 15)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Difficulty, 13)
		assert.LessOrEqual(t, p.Difficulty, 27)
	}

	assert.Empty(t, c.ProblemsInRange(30, 20))
	assert.Len(t, c.ProblemsInRange(-10, 3), 3)

	hist := c.DifficultyHistogram()
	assert.Equal(t, 5, hist[20])
	assert.Equal(t, 4, hist[0])
	assert.Equal(t, 1, hist[100])
}

func TestProblemsForTopicInRange(t *testing.T) {
	var problems []Problem
	for d := 10; d < 30; d++ {
		problems = append(problems, Problem{ID: "dp-" + strconv.Itoa(d), URL: "u", Difficulty: d, PatternID: strPtr("dp_general")})
	}
	c := New(problems)
	rng := rand.New(rand.NewPCG(1, 2))

	assert.Len(t, c.ProblemsForTopicInRange("dp_general", 10, 14, 10, rng), 5)

	limited := c.ProblemsForTopicInRange("dp_general", 10, 29, 3, rng)
	assert.Len(t, limited, 3)
	assert.Empty(t, c.ProblemsForTopicInRange("graph_mst", 0, 100, 3, rng))

	assert.Equal(t, map[string]int{"dp_general": 20}, c.TopicCounts())
	assert.True(t, c.HasTopic("dp_general"))
	assert.False(t, c.HasTopic("graph_mst"))
}
