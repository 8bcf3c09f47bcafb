package grading

import (
	"context"
	"math"
	"strconv"
	"strings"
)

type numericStrategy struct{}

// Grade awards full points when the response is within tolerance of any key.
// Without a tolerance only an exact numeric match counts.
func (numericStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	if len(q.AcceptedAnswers) == 0 {
		return manual(), nil
	}
	got, ok := parseFloatLoose(response)
	if !ok {
		return awarded(0), nil
	}

	tol := 0.0
	if q.Tolerance != nil && *q.Tolerance > 0 {
		tol = *q.Tolerance
	}
	for _, key := range q.AcceptedAnswers {
		want, ok := parseFloatLoose(key)
		if !ok {
			continue
		}
		if math.Abs(got-want) <= tol {
			return awarded(q.MaxPoints), nil
		}
	}
	return awarded(0), nil
}

// parseFloatLoose accepts "3.14", " 3.14 ", "3,14" and "3.14 m"
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	candidates := []string{s, strings.ReplaceAll(s, ",", ".")}
	if fields := strings.Fields(s); len(fields) > 1 {
		candidates = append(candidates, fields[0])
	}
	for _, c := range candidates {
		if v, err := strconv.ParseFloat(c, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}
