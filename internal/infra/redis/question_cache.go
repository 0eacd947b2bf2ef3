package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mathfly-quiz-service/internal/domain"
)

// QuestionLoader fetches a tier's questions from a backing store (e.g., Postgres).
type QuestionLoader interface {
	QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error)
}

// QuestionCache caches tier question sets in Redis and falls back to a loader on cache miss.
// Questions are stored as: HSET questions:tier:{n} {questionID} {json}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error) {
	key := c.key(tier)
	if questions, ok := c.cached(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.QuestionsByTier(ctx, tier)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}

		pipe := c.client.Pipeline()
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, q.ID, raw)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// A failed cache fill only costs another load on the next call.
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached set for a tier.
func (c *QuestionCache) Invalidate(ctx context.Context, tier domain.Tier) error {
	return c.client.Del(ctx, c.key(tier)).Err()
}

func (c *QuestionCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(raw))
	for _, v := range raw {
		var q domain.Question
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			return nil, false
		}
		questions = append(questions, q)
	}
	return questions, true
}

func (c *QuestionCache) key(tier domain.Tier) string {
	return "questions:tier:" + strconv.Itoa(int(tier))
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
