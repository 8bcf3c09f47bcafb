package grading

import (
	"context"
	"unicode"
)

type textStrategy struct {
	maxEdit int
}

// Grade awards full points when the normalised response matches any key
func (s textStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	if len(q.AcceptedAnswers) == 0 {
		return manual(), nil
	}
	got := normalize(response)
	if got == "" {
		return awarded(0), nil
	}
	for _, key := range q.AcceptedAnswers {
		want := normalize(key)
		if want == "" {
			continue
		}
		if got == want || (s.maxEdit > 0 && levenshtein(got, want) <= s.maxEdit) {
			return awarded(q.MaxPoints), nil
		}
	}
	return awarded(0), nil
}

// normalize casefolds, drops punctuation and collapses whitespace
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// levenshtein is the edit distance with unit costs
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := range dp {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
