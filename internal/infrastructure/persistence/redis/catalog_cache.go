package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// Read-through cache in front of a catalog.Reader. Redis failures fall back
// to the source; misses and not-found results are never cached.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCatalogTTL bounds how long a lesson added to a course can go unseen.
const DefaultCatalogTTL = 5 * time.Minute

// CatalogCache implements catalog.Reader.
type CatalogCache struct {
	cache  *Cache
	source catalog.Reader
	ttl    time.Duration
	log    *logger.Logger
}

var _ catalog.Reader = (*CatalogCache)(nil)

// NewCatalogCache wraps source. ttl <= 0 uses DefaultCatalogTTL.
func NewCatalogCache(cache *Cache, source catalog.Reader, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogCache{
		cache:  cache,
		source: source,
		ttl:    ttl,
		log:    log.With(logger.Component("catalog_cache")),
	}
}

// LessonIDs implements catalog.Reader.
func (c *CatalogCache) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	key := CourseKey(courseID)
	var ids []string
	if c.lookup(ctx, key, &ids) {
		return ids, nil
	}
	ids, err := c.source.LessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, ids)
	return ids, nil
}

// CourseOfLesson implements catalog.Reader.
func (c *CatalogCache) CourseOfLesson(ctx context.Context, lessonID string) (string, error) {
	key := LessonKey(lessonID)
	var course string
	if c.lookup(ctx, key, &course) {
		return course, nil
	}
	course, err := c.source.CourseOfLesson(ctx, lessonID)
	if err != nil {
		return "", err
	}
	c.store(ctx, key, course)
	return course, nil
}

// GetQuiz implements catalog.Reader.
func (c *CatalogCache) GetQuiz(ctx context.Context, quizID string) (*assessment.Quiz, error) {
	key := QuizKey(quizID)
	var doc quizDoc
	if c.lookup(ctx, key, &doc) {
		q, err := doc.quiz()
		if err == nil {
			return q, nil
		}
		c.log.Warn("dropping undecodable cached quiz", logger.QuizID(quizID), logger.Err(err))
		c.drop(ctx, key)
	}

	q, err := c.source.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if doc, err := newQuizDoc(q); err == nil {
		c.store(ctx, key, doc)
	}
	return q, nil
}

// InvalidateCourse drops the cached lesson list of a course.
func (c *CatalogCache) InvalidateCourse(ctx context.Context, courseID string) error {
	return c.cache.Delete(ctx, CourseKey(courseID))
}

// InvalidateQuiz drops a cached quiz definition.
func (c *CatalogCache) InvalidateQuiz(ctx context.Context, quizID string) error {
	return c.cache.Delete(ctx, QuizKey(quizID))
}

func (c *CatalogCache) lookup(ctx context.Context, key string, dest any) bool {
	err := c.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("catalog cache read failed", logger.String("key", key), logger.Err(err))
	}
	return false
}

func (c *CatalogCache) store(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.log.Warn("catalog cache write failed", logger.String("key", key), logger.Err(err))
	}
}

func (c *CatalogCache) drop(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("catalog cache delete failed", logger.String("key", key), logger.Err(err))
	}
}

// quizDoc is the cached form of a quiz. Questions use the assessment codec
// since the variants are an interface.
type quizDoc struct {
	ID               string          `json:"id"`
	LessonID         string          `json:"lesson_id"`
	Title            string          `json:"title"`
	Published        bool            `json:"published"`
	PassingScore     float64         `json:"passing_score"`
	MaxAttempts      *int            `json:"max_attempts,omitempty"`
	TimeLimitSeconds *int64          `json:"time_limit_seconds,omitempty"`
	ShuffleQuestions bool            `json:"shuffle_questions"`
	ShuffleOptions   bool            `json:"shuffle_options"`
	RevealAnswers    bool            `json:"reveal_answers"`
	Questions        json.RawMessage `json:"questions"`
}

func newQuizDoc(q *assessment.Quiz) (quizDoc, error) {
	questions, err := assessment.MarshalQuestions(q.Questions)
	if err != nil {
		return quizDoc{}, err
	}
	doc := quizDoc{
		ID:               q.ID,
		LessonID:         q.LessonID,
		Title:            q.Title,
		Published:        q.Published,
		PassingScore:     q.PassingScore,
		MaxAttempts:      q.MaxAttempts,
		ShuffleQuestions: q.ShuffleQuestions,
		ShuffleOptions:   q.ShuffleOptions,
		RevealAnswers:    q.RevealAnswers,
		Questions:        questions,
	}
	if q.TimeLimit != nil {
		s := int64(*q.TimeLimit / time.Second)
		doc.TimeLimitSeconds = &s
	}
	return doc, nil
}

func (d quizDoc) quiz() (*assessment.Quiz, error) {
	questions, err := assessment.UnmarshalQuestions(d.Questions)
	if err != nil {
		return nil, err
	}
	q := &assessment.Quiz{
		ID:               d.ID,
		LessonID:         d.LessonID,
		Title:            d.Title,
		Published:        d.Published,
		PassingScore:     d.PassingScore,
		MaxAttempts:      d.MaxAttempts,
		ShuffleQuestions: d.ShuffleQuestions,
		ShuffleOptions:   d.ShuffleOptions,
		RevealAnswers:    d.RevealAnswers,
		Questions:        questions,
	}
	if d.TimeLimitSeconds != nil {
		limit := time.Duration(*d.TimeLimitSeconds) * time.Second
		q.TimeLimit = &limit
	}
	return q, nil
}
