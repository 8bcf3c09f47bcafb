package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type answerKey struct {
	attemptID  uint
	questionID uint
}

type store struct {
	mu sync.RWMutex

	lastID map[string]uint

	users       map[uint]*models.User
	tests       map[uint]*models.Test
	questions   map[uint]*models.Question
	options     map[uint]*models.AnswerOption
	attempts    map[uint]*models.TestAttempt
	answers     map[uint]*models.AttemptAnswer
	answerIndex map[answerKey]uint
}

func newStore() *store {
	return &store{
		lastID:      map[string]uint{},
		users:       map[uint]*models.User{},
		tests:       map[uint]*models.Test{},
		questions:   map[uint]*models.Question{},
		options:     map[uint]*models.AnswerOption{},
		attempts:    map[uint]*models.TestAttempt{},
		answers:     map[uint]*models.AttemptAnswer{},
		answerIndex: map[answerKey]uint{},
	}
}

func (s *store) nextID(table string) uint {
	s.lastID[table]++
	return s.lastID[table]
}

// clone copies the whole store; records are treated as immutable once stored,
// so copying the maps is enough for rollback
func (s *store) clone() *store {
	c := newStore()
	for k, v := range s.lastID {
		c.lastID[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tests {
		c.tests[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	for k, v := range s.answerIndex {
		c.answerIndex[k] = v
	}
	return c
}

func (s *store) restore(from *store) {
	s.lastID = from.lastID
	s.users = from.users
	s.tests = from.tests
	s.questions = from.questions
	s.options = from.options
	s.attempts = from.attempts
	s.answers = from.answers
	s.answerIndex = from.answerIndex
}

// Repository is a process-local implementation of repositories.Repository.
// Every read returns copies and every write stores copies, so callers never
// share memory with the store.
type Repository struct {
	s    *store
	inTx bool
	now  func() time.Time
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{s: newStore(), now: time.Now}
}

func (r *Repository) rlock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *Repository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *Repository) User() repositories.UserRepository         { return &userRepo{r} }
func (r *Repository) Test() repositories.TestRepository         { return &testRepo{r} }
func (r *Repository) Question() repositories.QuestionRepository { return &questionRepo{r} }
func (r *Repository) Option() repositories.OptionRepository     { return &optionRepo{r} }
func (r *Repository) Attempt() repositories.AttemptRepository   { return &attemptRepo{r} }
func (r *Repository) Answer() repositories.AnswerRepository     { return &answerRepo{r} }

// WithTransaction holds the store lock for the duration of fn and restores the
// previous state if fn fails
func (r *Repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	backup := r.s.clone()
	tx := &Repository{s: r.s, inTx: true, now: r.now}
	if err := fn(tx); err != nil {
		r.s.restore(backup)
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error { return nil }
func (r *Repository) Close() error                   { return nil }

// ===== CLONING =====

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBytes[T ~[]byte](b T) T {
	if b == nil {
		return nil
	}
	out := make(T, len(b))
	copy(out, b)
	return out
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneTest(t *models.Test) *models.Test {
	c := *t
	c.Creator = nil
	c.Questions = nil
	return &c
}

func cloneQuestion(q *models.Question) *models.Question {
	c := *q
	c.AcceptedAnswers = cloneBytes(q.AcceptedAnswers)
	c.Tolerance = clonePtr(q.Tolerance)
	c.Options = nil
	return &c
}

func cloneOption(o *models.AnswerOption) *models.AnswerOption {
	c := *o
	return &c
}

func cloneAttempt(a *models.TestAttempt) *models.TestAttempt {
	c := *a
	c.EndTime = clonePtr(a.EndTime)
	c.EndReason = clonePtr(a.EndReason)
	c.Score = clonePtr(a.Score)
	c.MaxScore = clonePtr(a.MaxScore)
	c.Percentage = clonePtr(a.Percentage)
	c.Passed = clonePtr(a.Passed)
	c.Snapshot = cloneBytes(a.Snapshot)
	c.Answers = nil
	return &c
}

func cloneAnswer(a *models.AttemptAnswer) *models.AttemptAnswer {
	c := *a
	c.OptionIDs = cloneBytes(a.OptionIDs)
	c.AnswerText = clonePtr(a.AnswerText)
	c.ScoreEarned = clonePtr(a.ScoreEarned)
	c.GradedBy = clonePtr(a.GradedBy)
	c.GradedAt = clonePtr(a.GradedAt)
	return &c
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
