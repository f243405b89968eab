package grouper

import "strings"

// NameSimilarity scores two column names in [0,1]. Normalization strips
// separators so "Brand_Name" and "brandname" compare equal.
func NameSimilarity(a, b string) float64 {
	na := normalizeName(a)
	nb := normalizeName(b)
	if na == nb {
		return 1.0
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.8
	}
	lev := LevenshteinRatio(a, b)
	jac := TrigramJaccard(a, b)
	if jac > lev {
		return jac
	}
	return lev
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	for _, sep := range []string{"_", "-", " ", "."} {
		s = strings.ReplaceAll(s, sep, "")
	}
	return s
}

// LevenshteinRatio returns 1 - distance/maxLen over lowercased input.
func LevenshteinRatio(s1, s2 string) float64 {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)
	distance := levenshtein(s1, s2)
	maxLen := float64(max(len(s1), len(s2)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - (float64(distance) / maxLen)
}

func levenshtein(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	row := make([]int, len2+1)
	for i := 0; i <= len2; i++ {
		row[i] = i
	}

	for i := 1; i <= len1; i++ {
		prev := i
		for j := 1; j <= len2; j++ {
			val := row[j]
			if r1[i-1] == r2[j-1] {
				val = row[j-1]
			} else {
				val = min(min(row[j-1]+1, prev+1), row[j]+1)
			}
			row[j-1] = prev
			prev = val
		}
		row[len2] = prev
	}
	return row[len2]
}

// TrigramJaccard computes Jaccard similarity of character 3-gram sets.
func TrigramJaccard(s1, s2 string) float64 {
	set1 := trigramSet(s1)
	set2 := trigramSet(s2)

	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	intersection := 0
	for g := range set1 {
		if set2[g] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigramSet(s string) map[string]bool {
	s = strings.ToLower(s)
	set := make(map[string]bool)
	if len(s) < 3 {
		if s != "" {
			set[s] = true
		}
		return set
	}
	for i := 0; i <= len(s)-3; i++ {
		set[s[i:i+3]] = true
	}
	return set
}

// valueOverlapLimit bounds how many distinct values per side feed the
// overlap computation.
const valueOverlapLimit = 200

// ValueOverlap computes Jaccard similarity over lowercased value sets.
func ValueOverlap(vals1, vals2 []string) float64 {
	set1 := valueSet(vals1)
	set2 := valueSet(vals2)

	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	intersection := 0
	for v := range set1 {
		if set2[v] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func valueSet(vals []string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range vals {
		if len(set) >= valueOverlapLimit {
			break
		}
		if v != "" {
			set[strings.ToLower(v)] = true
		}
	}
	return set
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
