package resolve

import (
	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// fuzzyRatio scores two strings in [0, 1] as one minus the normalized edit
// distance after case folding. Equal strings score 1.
func fuzzyRatio(a, b string) float64 {
	a = foldCaser.String(a)
	b = foldCaser.String(b)
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	distance := levenshtein([]rune(a), []rune(b))
	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	return 1 - float64(distance)/float64(longer)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
