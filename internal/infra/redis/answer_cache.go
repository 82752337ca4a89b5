// Package redis caches question answer keys so the judging hot path avoids
// repeated trips to the backing store.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"live-trivia-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question content from the backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id string) (domain.Question, error)
}

// AnswerCache caches the judging-relevant question fields (answer,
// alternatives, fuzzy flag) in a Redis hash per question and falls back to
// the loader on a miss. Lifecycle status is deliberately not cached — the
// judge must always see current state from whoever owns it, and the cached
// fields are immutable once the question is authored.
// Layout: HSET question:{id}:answerkey answer {answer} alts {json} fuzzy {0|1}
type AnswerCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAnswerCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetQuestion satisfies the judge's QuestionStore.
func (c *AnswerCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	key := c.key(id)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return questionFromFields(id, fields), nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return questionFromFields(id, fields), nil
		}

		question, err := c.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		alts, _ := json.Marshal(question.AlternativeAnswers)
		fuzzy := "0"
		if question.Fuzzy {
			fuzzy = "1"
		}
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key, "answer", question.Answer, "alts", string(alts), "fuzzy", fuzzy)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *AnswerCache) key(id string) string {
	return "question:" + id + ":answerkey"
}

func questionFromFields(id string, fields map[string]string) domain.Question {
	var alts []string
	if raw, ok := fields["alts"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &alts)
	}
	return domain.Question{
		ID:                 id,
		Answer:             fields["answer"],
		AlternativeAnswers: alts,
		Fuzzy:              fields["fuzzy"] == "1",
	}
}

func (c *AnswerCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
