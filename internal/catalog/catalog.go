package catalog

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
)

// BucketWidth is the width of the difficulty buckets used for range lookups.
const BucketWidth = 5

// GeneralTopic is the bucket for problems with neither a pattern nor a skill.
const GeneralTopic = "general"

const defaultDifficulty = 50

// Problem is one entry of the static problem catalog. Problems are never
// mutated after the catalog is built.
type Problem struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	URL             string         `json:"url"`
	Source          string         `json:"source"`
	Difficulty      int            `json:"internal_rating"`
	PrimarySkills   []string       `json:"primary_skills"`
	SecondarySkills []string       `json:"secondary_skills"`
	PatternID       *string        `json:"pattern_id"`
	Tags            []string       `json:"tags"`
	Extra           map[string]any `json:"extra"`
}

type catalogFile struct {
	Problems []rawProblem `json:"problems"`
}

// rawProblem keeps internal_rating nullable so a missing rating can fall back
// to the default instead of zero.
type rawProblem struct {
	Problem
	Difficulty *int `json:"internal_rating"`
}

// Catalog is a read-only index over the problem collection. Build it once and
// share the pointer; all methods are safe for concurrent use.
type Catalog struct {
	problems     []*Problem
	byID         map[string]*Problem
	byTopic      map[string][]*Problem
	byDifficulty map[int][]*Problem
	topics       []string
}

// Load reads a catalog file of the form {"problems": [...]}. A missing file is
// reported as an error wrapping fs.ErrNotExist.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problems file %s: %w", path, err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse problems file %s: %w", path, err)
	}

	problems := make([]Problem, 0, len(file.Problems))
	for _, raw := range file.Problems {
		p := raw.Problem
		p.Difficulty = defaultDifficulty
		if raw.Difficulty != nil {
			p.Difficulty = *raw.Difficulty
		}
		if p.Name == "" {
			p.Name = "Unknown"
		}
		problems = append(problems, p)
	}

	return New(problems), nil
}

// New builds a catalog from in-memory problems. Entries without an id or url
// are dropped, as are duplicate ids after the first.
func New(problems []Problem) *Catalog {
	c := &Catalog{
		byID:         make(map[string]*Problem),
		byTopic:      make(map[string][]*Problem),
		byDifficulty: make(map[int][]*Problem),
	}

	for i := range problems {
		p := problems[i]
		if p.ID == "" || p.URL == "" {
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		p.Difficulty = clampDifficulty(p.Difficulty)

		c.problems = append(c.problems, &p)
		c.byID[p.ID] = &p

		topic := TopicOf(&p)
		c.byTopic[topic] = append(c.byTopic[topic], &p)

		bucket := bucketOf(p.Difficulty)
		c.byDifficulty[bucket] = append(c.byDifficulty[bucket], &p)
	}

	for topic := range c.byTopic {
		c.topics = append(c.topics, topic)
	}
	sort.Strings(c.topics)

	return c
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 100 {
		return 100
	}
	return d
}

func bucketOf(difficulty int) int {
	return (difficulty / BucketWidth) * BucketWidth
}

// TopicOf derives the topic a problem is filed under: its pattern id, else
// its first primary skill, else the general bucket.
func TopicOf(p *Problem) string {
	if p.PatternID != nil && *p.PatternID != "" {
		return *p.PatternID
	}
	if len(p.PrimarySkills) > 0 && p.PrimarySkills[0] != "" {
		return utils.TopicSlug(p.PrimarySkills[0])
	}
	return GeneralTopic
}

// Get returns the problem with the given id.
func (c *Catalog) Get(id string) (*Problem, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Len is the number of indexed problems.
func (c *Catalog) Len() int {
	return len(c.problems)
}

// All returns every problem in load order. The slice must not be modified.
func (c *Catalog) All() []*Problem {
	return c.problems
}

// Topics returns the topic identifiers present in the catalog, sorted.
func (c *Catalog) Topics() []string {
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// HasTopic reports whether any problem is filed under topic.
func (c *Catalog) HasTopic(topic string) bool {
	_, ok := c.byTopic[topic]
	return ok
}

// TopicCounts maps each topic to its problem count.
func (c *Catalog) TopicCounts() map[string]int {
	counts := make(map[string]int, len(c.byTopic))
	for topic, ps := range c.byTopic {
		counts[topic] = len(ps)
	}
	return counts
}

// ProblemsForTopic returns the problems filed under topic. The slice must not
// be modified.
func (c *Catalog) ProblemsForTopic(topic string) []*Problem {
	return c.byTopic[topic]
}

// ProblemsInRange returns every problem with min <= difficulty <= max by
// walking the difficulty buckets that overlap the range.
func (c *Catalog) ProblemsInRange(min, max int) []*Problem {
	if min > max {
		return nil
	}
	var out []*Problem
	for bucket := bucketOf(min); bucket <= max; bucket += BucketWidth {
		for _, p := range c.byDifficulty[bucket] {
			if p.Difficulty >= min && p.Difficulty <= max {
				out = append(out, p)
			}
		}
	}
	return out
}

// ProblemsForTopicInRange returns up to limit problems of topic within
// [min, max]; when more match, a random sample is drawn with rng.
func (c *Catalog) ProblemsForTopicInRange(topic string, min, max, limit int, rng *rand.Rand) []*Problem {
	var candidates []*Problem
	for _, p := range c.byTopic[topic] {
		if p.Difficulty >= min && p.Difficulty <= max {
			candidates = append(candidates, p)
		}
	}
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return sample(rng, candidates, limit)
}

// DifficultyHistogram counts problems per difficulty bucket.
func (c *Catalog) DifficultyHistogram() map[int]int {
	hist := make(map[int]int, len(c.byDifficulty))
	for bucket, ps := range c.byDifficulty {
		hist[bucket] = len(ps)
	}
	return hist
}

// sample draws k distinct elements from candidates without modifying it.
func sample(rng *rand.Rand, candidates []*Problem, k int) []*Problem {
	pool := make([]*Problem, len(candidates))
	copy(pool, candidates)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
