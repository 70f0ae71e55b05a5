package catalog

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultTolerance     = 5
	DefaultAttemptFactor = 10
	// DefaultWeakOffset is how far below the contest target weak topics are drawn.
	DefaultWeakOffset = 10
	// weakToleranceBonus widens the band for weak-topic draws.
	weakToleranceBonus = 5
	// fallbackToleranceFactor scales the tolerance for the topic-free fallback.
	fallbackToleranceFactor = 3
)

// Selection is one problem picked for a contest.
type Selection struct {
	Problem            *Problem `json:"problem"`
	Topic              string   `json:"topic"`
	IsWeakTopicProblem bool     `json:"is_weak_topic_problem"`
	TargetDifficulty   int      `json:"target_difficulty"`
}

// SelectRequest describes the contest the selection is for.
type SelectRequest struct {
	TargetDifficulty  int
	Count             int
	WeakTopics        []string
	ExcludedIDs       map[string]struct{}
	IncludeWeakTopics bool
}

// Selector picks topic-diverse, difficulty-targeted problems from a Catalog.
type Selector struct {
	catalog       *Catalog
	tolerance     int
	attemptFactor int
	weakOffset    int

	mu  sync.Mutex
	rng *rand.Rand
}

type SelectorOption func(*Selector)

// WithTolerance sets the allowed distance from the target difficulty.
func WithTolerance(t int) SelectorOption {
	return func(s *Selector) {
		if t > 0 {
			s.tolerance = t
		}
	}
}

// WithAttemptFactor bounds the diversity loop to factor x remaining slots.
func WithAttemptFactor(f int) SelectorOption {
	return func(s *Selector) {
		if f > 0 {
			s.attemptFactor = f
		}
	}
}

// WithWeakOffset sets how far below target weak topics are practiced.
func WithWeakOffset(o int) SelectorOption {
	return func(s *Selector) {
		s.weakOffset = o
	}
}

// WithSeed makes selection deterministic. A zero seed keeps the clock seed.
func WithSeed(seed int64) SelectorOption {
	return func(s *Selector) {
		if seed != 0 {
			s.rng = newRand(uint64(seed))
		}
	}
}

// WithRand injects a random source.
func WithRand(r *rand.Rand) SelectorOption {
	return func(s *Selector) {
		if r != nil {
			s.rng = r
		}
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func NewSelector(c *Catalog, opts ...SelectorOption) *Selector {
	s := &Selector{
		catalog:       c,
		tolerance:     DefaultTolerance,
		attemptFactor: DefaultAttemptFactor,
		weakOffset:    DefaultWeakOffset,
		rng:           newRand(uint64(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tolerance is the configured difficulty tolerance.
func (s *Selector) Tolerance() int {
	return s.tolerance
}

// Select returns at most req.Count problems. It never fails: a shortfall is
// reported by returning fewer items, and the caller decides whether that is
// fatal. Items are ordered weak slice, diversity slice, fallback slice.
func (s *Selector) Select(req SelectRequest) []Selection {
	if req.Count <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	used := make(map[string]struct{}, len(req.ExcludedIDs)+req.Count)
	for id := range req.ExcludedIDs {
		used[id] = struct{}{}
	}
	usedTopics := make(map[string]struct{})
	selected := make([]Selection, 0, req.Count)

	// 1. Weak topics, practiced below the nominal target.
	if req.IncludeWeakTopics && len(req.WeakTopics) > 0 {
		weakCount := min(len(req.WeakTopics), max(1, req.Count/3))
		weakTarget := req.TargetDifficulty - s.weakOffset

		for _, topic := range req.WeakTopics[:weakCount] {
			if len(selected) >= req.Count {
				break
			}
			if _, seen := usedTopics[topic]; seen {
				continue
			}
			p := s.pickForTopic(topic, weakTarget, s.tolerance+weakToleranceBonus, used, true)
			if p == nil {
				continue
			}
			selected = append(selected, Selection{
				Problem:            p,
				Topic:              topic,
				IsWeakTopicProblem: true,
				TargetDifficulty:   weakTarget,
			})
			used[p.ID] = struct{}{}
			usedTopics[topic] = struct{}{}
		}
	}

	// 2. One problem per unused topic, in random order.
	selected = s.fillDiverse(selected, req, used, usedTopics)

	// 3. Relax topic constraints entirely.
	if remaining := req.Count - len(selected); remaining > 0 {
		for _, p := range s.pickFallback(req.TargetDifficulty, remaining, used) {
			selected = append(selected, Selection{
				Problem:          p,
				Topic:            TopicOf(p),
				TargetDifficulty: req.TargetDifficulty,
			})
			used[p.ID] = struct{}{}
		}
	}

	return selected
}

func (s *Selector) fillDiverse(selected []Selection, req SelectRequest, used, usedTopics map[string]struct{}) []Selection {
	remaining := req.Count - len(selected)
	if remaining <= 0 {
		return selected
	}

	var pool []string
	for _, topic := range s.catalog.topics {
		if _, taken := usedTopics[topic]; !taken {
			pool = append(pool, topic)
		}
	}
	if len(pool) == 0 {
		pool = s.shuffledTopics()
	} else {
		s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	if len(pool) == 0 {
		return selected
	}

	idx := 0
	maxAttempts := remaining * s.attemptFactor
	for attempts := 0; len(selected) < req.Count && attempts < maxAttempts; attempts++ {
		if idx >= len(pool) {
			// Unused topics exhausted: allow repeats over the full set.
			pool = s.shuffledTopics()
			idx = 0
		}
		topic := pool[idx]
		idx++

		p := s.pickForTopic(topic, req.TargetDifficulty, s.tolerance, used, false)
		if p == nil {
			continue
		}
		selected = append(selected, Selection{
			Problem:          p,
			Topic:            topic,
			TargetDifficulty: req.TargetDifficulty,
		})
		used[p.ID] = struct{}{}
		usedTopics[topic] = struct{}{}
	}
	return selected
}

func (s *Selector) shuffledTopics() []string {
	topics := s.catalog.Topics()
	s.rng.Shuffle(len(topics), func(i, j int) { topics[i], topics[j] = topics[j], topics[i] })
	return topics
}

// pickForTopic draws one unused problem of topic within tolerance of
// difficulty. With widen set, an empty band is retried at double tolerance.
func (s *Selector) pickForTopic(topic string, difficulty, tolerance int, used map[string]struct{}, widen bool) *Problem {
	candidates := s.topicCandidates(topic, difficulty, tolerance, used)
	if len(candidates) == 0 && widen {
		candidates = s.topicCandidates(topic, difficulty, tolerance*2, used)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[s.rng.IntN(len(candidates))]
}

func (s *Selector) topicCandidates(topic string, difficulty, tolerance int, used map[string]struct{}) []*Problem {
	var out []*Problem
	for _, p := range s.catalog.byTopic[topic] {
		if _, taken := used[p.ID]; taken {
			continue
		}
		if abs(p.Difficulty-difficulty) <= tolerance {
			out = append(out, p)
		}
	}
	return out
}

func (s *Selector) pickFallback(difficulty, count int, used map[string]struct{}) []*Problem {
	band := s.tolerance * fallbackToleranceFactor
	var candidates []*Problem
	for _, p := range s.catalog.ProblemsInRange(difficulty-band, difficulty+band) {
		if _, taken := used[p.ID]; !taken {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) <= count {
		return candidates
	}
	return sample(s.rng, candidates, count)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
