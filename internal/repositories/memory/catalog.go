package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// ===== USERS =====

type userRepo struct{ r *Repository }

func (u *userRepo) Create(ctx context.Context, user *models.User) error {
	defer u.r.lock()()
	for _, existing := range u.r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repositories.ErrDuplicate
		}
	}
	now := u.r.now()
	user.ID = u.r.s.nextID("users")
	user.CreatedAt, user.UpdatedAt = now, now
	u.r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (u *userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer u.r.rlock()()
	user, ok := u.r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(user), nil
}

func (u *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer u.r.rlock()()
	for _, user := range u.r.s.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (u *userRepo) Update(ctx context.Context, user *models.User) error {
	defer u.r.lock()()
	existing, ok := u.r.s.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	for id, other := range u.r.s.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return repositories.ErrDuplicate
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = u.r.now()
	u.r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (u *userRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	defer u.r.rlock()()
	query := strings.ToLower(strings.TrimSpace(filters.Query))
	var matched []*models.User
	for _, user := range u.r.s.users {
		if query != "" &&
			!strings.Contains(strings.ToLower(user.Email), query) &&
			!strings.Contains(strings.ToLower(user.FirstName), query) &&
			!strings.Contains(strings.ToLower(user.LastName), query) {
			continue
		}
		matched = append(matched, cloneUser(user))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return paginate(matched, filters.Limit, filters.Offset), int64(len(matched)), nil
}

func (u *userRepo) Count(ctx context.Context) (int64, error) {
	defer u.r.rlock()()
	return int64(len(u.r.s.users)), nil
}

func (u *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := u.GetByEmail(ctx, email)
	if repositories.IsNotFoundError(err) {
		return false, nil
	}
	return err == nil, err
}

// ===== TESTS =====

type testRepo struct{ r *Repository }

func (t *testRepo) Create(ctx context.Context, test *models.Test) error {
	defer t.r.lock()()
	now := t.r.now()
	test.ID = t.r.s.nextID("tests")
	test.CreatedAt, test.UpdatedAt = now, now
	t.r.s.tests[test.ID] = cloneTest(test)
	return nil
}

func (t *testRepo) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	defer t.r.rlock()()
	test, ok := t.r.s.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneTest(test)
	out.QuestionCount = t.r.questionCountLocked(id)
	return out, nil
}

func (t *testRepo) GetByIDs(ctx context.Context, ids []uint) ([]*models.Test, error) {
	defer t.r.rlock()()
	out := make([]*models.Test, 0, len(ids))
	for _, id := range ids {
		if test, ok := t.r.s.tests[id]; ok {
			out = append(out, cloneTest(test))
		}
	}
	return out, nil
}

func (t *testRepo) Update(ctx context.Context, test *models.Test) error {
	defer t.r.lock()()
	existing, ok := t.r.s.tests[test.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	test.CreatedAt = existing.CreatedAt
	test.UpdatedAt = t.r.now()
	t.r.s.tests[test.ID] = cloneTest(test)
	return nil
}

func (t *testRepo) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	defer t.r.rlock()()
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	var matched []*models.Test
	for _, test := range t.r.s.tests {
		if filters.IsActive != nil && test.IsActive != *filters.IsActive {
			continue
		}
		if filters.CreatorID != nil && test.CreatorID != *filters.CreatorID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(test.Title), search) &&
			!strings.Contains(strings.ToLower(test.Description), search) {
			continue
		}
		out := cloneTest(test)
		out.QuestionCount = t.r.questionCountLocked(test.ID)
		matched = append(matched, out)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filters.Limit, filters.Offset), int64(len(matched)), nil
}

func (t *testRepo) Count(ctx context.Context) (int64, error) {
	defer t.r.rlock()()
	return int64(len(t.r.s.tests)), nil
}

func (r *Repository) questionCountLocked(testID uint) int {
	n := 0
	for _, q := range r.s.questions {
		if q.TestID == testID {
			n++
		}
	}
	return n
}

// ===== QUESTIONS =====

type questionRepo struct{ r *Repository }

func (q *questionRepo) Create(ctx context.Context, question *models.Question) error {
	defer q.r.lock()()
	if _, ok := q.r.s.tests[question.TestID]; !ok {
		return repositories.ErrNotFound
	}
	now := q.r.now()
	question.ID = q.r.s.nextID("questions")
	question.CreatedAt, question.UpdatedAt = now, now
	q.r.s.questions[question.ID] = cloneQuestion(question)

	for i := range question.Options {
		opt := &question.Options[i]
		opt.ID = q.r.s.nextID("answer_options")
		opt.QuestionID = question.ID
		opt.CreatedAt, opt.UpdatedAt = now, now
		q.r.s.options[opt.ID] = cloneOption(opt)
	}
	return nil
}

func (q *questionRepo) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	defer q.r.rlock()()
	question, ok := q.r.s.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneQuestion(question)
	out.Options = q.r.optionsLocked(id)
	return out, nil
}

func (q *questionRepo) Update(ctx context.Context, question *models.Question) error {
	defer q.r.lock()()
	existing, ok := q.r.s.questions[question.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	question.TestID = existing.TestID
	question.CreatedAt = existing.CreatedAt
	question.UpdatedAt = q.r.now()
	q.r.s.questions[question.ID] = cloneQuestion(question)
	return nil
}

func (q *questionRepo) Delete(ctx context.Context, id uint) error {
	defer q.r.lock()()
	if _, ok := q.r.s.questions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(q.r.s.questions, id)
	for optID, opt := range q.r.s.options {
		if opt.QuestionID == id {
			delete(q.r.s.options, optID)
		}
	}
	return nil
}

func (q *questionRepo) ListByTest(ctx context.Context, testID uint) ([]*models.Question, error) {
	defer q.r.rlock()()
	var out []*models.Question
	for _, question := range q.r.s.questions {
		if question.TestID != testID {
			continue
		}
		c := cloneQuestion(question)
		c.Options = q.r.optionsLocked(question.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *questionRepo) CountByTest(ctx context.Context, testID uint) (int64, error) {
	defer q.r.rlock()()
	return int64(q.r.questionCountLocked(testID)), nil
}

func (q *questionRepo) MaxOrderIndex(ctx context.Context, testID uint) (int, error) {
	defer q.r.rlock()()
	maxIndex := 0
	for _, question := range q.r.s.questions {
		if question.TestID == testID && question.OrderIndex > maxIndex {
			maxIndex = question.OrderIndex
		}
	}
	return maxIndex, nil
}

func (q *questionRepo) UpdateOrder(ctx context.Context, testID uint, orders []repositories.QuestionOrder) error {
	defer q.r.lock()()
	for _, o := range orders {
		question, ok := q.r.s.questions[o.QuestionID]
		if !ok || question.TestID != testID {
			return repositories.ErrNotFound
		}
	}
	now := q.r.now()
	for _, o := range orders {
		c := cloneQuestion(q.r.s.questions[o.QuestionID])
		c.OrderIndex = o.OrderIndex
		c.UpdatedAt = now
		q.r.s.questions[o.QuestionID] = c
	}
	return nil
}

func (r *Repository) optionsLocked(questionID uint) []models.AnswerOption {
	var out []models.AnswerOption
	for _, opt := range r.s.options {
		if opt.QuestionID == questionID {
			out = append(out, *cloneOption(opt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ===== OPTIONS =====

type optionRepo struct{ r *Repository }

func (o *optionRepo) Create(ctx context.Context, option *models.AnswerOption) error {
	defer o.r.lock()()
	if _, ok := o.r.s.questions[option.QuestionID]; !ok {
		return repositories.ErrNotFound
	}
	now := o.r.now()
	option.ID = o.r.s.nextID("answer_options")
	option.CreatedAt, option.UpdatedAt = now, now
	o.r.s.options[option.ID] = cloneOption(option)
	return nil
}

func (o *optionRepo) GetByID(ctx context.Context, id uint) (*models.AnswerOption, error) {
	defer o.r.rlock()()
	option, ok := o.r.s.options[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneOption(option), nil
}

func (o *optionRepo) Update(ctx context.Context, option *models.AnswerOption) error {
	defer o.r.lock()()
	existing, ok := o.r.s.options[option.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	option.QuestionID = existing.QuestionID
	option.CreatedAt = existing.CreatedAt
	option.UpdatedAt = o.r.now()
	o.r.s.options[option.ID] = cloneOption(option)
	return nil
}

func (o *optionRepo) Delete(ctx context.Context, id uint) error {
	defer o.r.lock()()
	if _, ok := o.r.s.options[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(o.r.s.options, id)
	return nil
}

func (o *optionRepo) ListByQuestion(ctx context.Context, questionID uint) ([]*models.AnswerOption, error) {
	defer o.r.rlock()()
	opts := o.r.optionsLocked(questionID)
	out := make([]*models.AnswerOption, len(opts))
	for i := range opts {
		out[i] = &opts[i]
	}
	return out, nil
}

func (o *optionRepo) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	defer o.r.rlock()()
	var n int64
	for _, opt := range o.r.s.options {
		if opt.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}
