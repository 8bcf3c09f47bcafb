package client

import (
	"context"
	"fmt"
	"strconv"
)

// ===== TESTS =====

func (c *Client) CreateTest(ctx context.Context, req TestRequest) (*Test, error) {
	var test Test
	if err := c.post(ctx, "/tests", req, &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *Client) GetTest(ctx context.Context, id uint) (*Test, error) {
	var test Test
	if err := c.get(ctx, fmt.Sprintf("/tests/%d", id), nil, &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *Client) ListTests(ctx context.Context, filter TestFilter) (*Page[Test], error) {
	q := pageQuery(filter.Page, filter.Limit)
	if filter.Active != nil {
		q.Set("active", strconv.FormatBool(*filter.Active))
	}
	if filter.CreatorID != 0 {
		q.Set("creator", strconv.FormatUint(uint64(filter.CreatorID), 10))
	}
	if filter.Search != "" {
		q.Set("q", filter.Search)
	}
	var out Page[Test]
	if err := c.get(ctx, "/tests", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTest sends only the non-zero fields of req
func (c *Client) UpdateTest(ctx context.Context, id uint, req TestRequest) (*Test, error) {
	var test Test
	if err := c.put(ctx, fmt.Sprintf("/tests/%d", id), req, &test); err != nil {
		return nil, err
	}
	return &test, nil
}

// DeactivateTest hides a test from new attempts; existing attempts keep their results
func (c *Client) DeactivateTest(ctx context.Context, id uint) error {
	return c.delete(ctx, fmt.Sprintf("/tests/%d", id))
}

// ===== QUESTIONS =====

func (c *Client) ListQuestions(ctx context.Context, testID uint) ([]Question, error) {
	var out []Question
	if err := c.get(ctx, fmt.Sprintf("/tests/%d/questions", testID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddQuestion(ctx context.Context, testID uint, req QuestionRequest) (*Question, error) {
	var q Question
	if err := c.post(ctx, fmt.Sprintf("/tests/%d/questions", testID), req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) ReorderQuestions(ctx context.Context, testID uint, questionIDs []uint) ([]Question, error) {
	var out []Question
	body := map[string][]uint{"questionIds": questionIDs}
	if err := c.put(ctx, fmt.Sprintf("/tests/%d/questions/order", testID), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQuestion(ctx context.Context, id uint) (*Question, error) {
	var q Question
	if err := c.get(ctx, fmt.Sprintf("/questions/%d", id), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) UpdateQuestion(ctx context.Context, id uint, req QuestionRequest) (*Question, error) {
	var q Question
	if err := c.put(ctx, fmt.Sprintf("/questions/%d", id), req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, id uint) error {
	return c.delete(ctx, fmt.Sprintf("/questions/%d", id))
}

// ===== OPTIONS =====

func (c *Client) ListOptions(ctx context.Context, questionID uint) ([]AnswerOption, error) {
	var out []AnswerOption
	if err := c.get(ctx, fmt.Sprintf("/questions/%d/options", questionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddOption(ctx context.Context, questionID uint, req OptionRequest) (*AnswerOption, error) {
	var o AnswerOption
	if err := c.post(ctx, fmt.Sprintf("/questions/%d/options", questionID), req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) UpdateOption(ctx context.Context, id uint, req OptionRequest) (*AnswerOption, error) {
	var o AnswerOption
	if err := c.put(ctx, fmt.Sprintf("/options/%d", id), req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) DeleteOption(ctx context.Context, id uint) error {
	return c.delete(ctx, fmt.Sprintf("/options/%d", id))
}
