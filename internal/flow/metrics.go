package flow

import (
	"math"
	"strings"
	"unicode/utf8"
)

const wordsPerPage = 500

type TextMetrics struct {
	TokenCount int     `json:"token_count"`
	PageCount  float64 `json:"page_count"`
}

// Metrics estimates tokens as one per four characters and pages as 500
// words, rounded to one decimal.
func Metrics(text string) TextMetrics {
	if text == "" {
		return TextMetrics{}
	}
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	return TextMetrics{
		TokenCount: (chars + 3) / 4,
		PageCount:  math.Round(float64(words)/wordsPerPage*10) / 10,
	}
}
