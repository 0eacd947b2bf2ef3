package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mathfly-quiz-service/internal/domain"
)

// QuestionLoader fetches a tier's questions from a backing store (e.g., Postgres).
type QuestionLoader interface {
	QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error)
}

// QuestionCache caches tier question sets with TTL to avoid repeated DB hits.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[domain.Tier]cachedTier
}

type cachedTier struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Tier]cachedTier),
	}
}

func (c *QuestionCache) QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error) {
	if questions, ok := c.lookup(tier); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(strconv.Itoa(int(tier)), func() (interface{}, error) {
		if questions, ok := c.lookup(tier); ok {
			return questions, nil
		}

		questions, err := c.loader.QuestionsByTier(ctx, tier)
		if err != nil {
			return nil, err
		}
		// Empty sets are not cached so a freshly seeded store is picked up.
		if len(questions) == 0 {
			return questions, nil
		}

		c.mu.Lock()
		c.cache[tier] = cachedTier{
			questions: questions,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (c *QuestionCache) lookup(tier domain.Tier) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[tier]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return append([]domain.Question(nil), entry.questions...), true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
