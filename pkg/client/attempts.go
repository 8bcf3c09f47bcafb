package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

func (c *Client) StartAttempt(ctx context.Context, testID uint) (*StartedAttempt, error) {
	var out StartedAttempt
	if err := c.post(ctx, "/attempts/start", map[string]uint{"testId": testID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, attemptID uint, answer Answer) error {
	return c.post(ctx, fmt.Sprintf("/attempts/%d/answers", attemptID), answer, nil)
}

// Progress finishes the attempt server-side when its time has run out
func (c *Client) Progress(ctx context.Context, attemptID uint) (*Progress, error) {
	var out Progress
	if err := c.get(ctx, fmt.Sprintf("/attempts/%d", attemptID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinishAttempt is idempotent: repeated calls return the stored result
func (c *Client) FinishAttempt(ctx context.Context, attemptID uint) (*Result, error) {
	var out Result
	if err := c.post(ctx, fmt.Sprintf("/attempts/%d/finish", attemptID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExpireAttempt(ctx context.Context, attemptID uint) (*Progress, error) {
	var out Progress
	if err := c.post(ctx, fmt.Sprintf("/attempts/%d/expire", attemptID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExpireOverdue returns how many attempts were finished
func (c *Client) ExpireOverdue(ctx context.Context) (int, error) {
	var out struct {
		Expired int `json:"expired"`
	}
	if err := c.post(ctx, "/attempts/expire-overdue", nil, &out); err != nil {
		return 0, err
	}
	return out.Expired, nil
}

func (c *Client) AttemptDetails(ctx context.Context, attemptID uint) (*AttemptDetails, error) {
	var out AttemptDetails
	if err := c.get(ctx, fmt.Sprintf("/attempts/%d/details", attemptID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserAttempts lists a user's attempts, optionally for one test (testID 0 means all)
func (c *Client) UserAttempts(ctx context.Context, userID, testID uint, page, limit int) (*Page[Attempt], error) {
	q := pageQuery(page, limit)
	if testID != 0 {
		q.Set("testId", strconv.FormatUint(uint64(testID), 10))
	}
	var out Page[Attempt]
	if err := c.get(ctx, fmt.Sprintf("/attempts/user/%d", userID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GradeAnswer(ctx context.Context, attemptID, questionID uint, points float64) (*Result, error) {
	var out Result
	path := fmt.Sprintf("/attempts/%d/answers/%d/grade", attemptID, questionID)
	if err := c.put(ctx, path, map[string]float64{"points": points}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== STATISTICS =====

func (c *Client) TestStatistics(ctx context.Context, testID uint) (*TestStatistics, error) {
	var out TestStatistics
	if err := c.get(ctx, fmt.Sprintf("/tests/%d/statistics", testID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserStatistics(ctx context.Context, userID uint) (*UserStatistics, error) {
	var out UserStatistics
	if err := c.get(ctx, fmt.Sprintf("/statistics/user/%d", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GlobalStatistics(ctx context.Context) (*GlobalStatistics, error) {
	var out GlobalStatistics
	if err := c.get(ctx, "/statistics/global", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportResults downloads the XLSX workbook of a test's attempts
func (c *Client) ExportResults(ctx context.Context, testID uint) ([]byte, error) {
	path := fmt.Sprintf("/tests/%d/results/export", testID)
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decode(resp, nil)
	}
	return io.ReadAll(resp.Body)
}
