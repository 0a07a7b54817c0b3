package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	headerMinUniqueRatio = 0.7
	headerMaxAvgLen      = 40
)

// LooksLikeHeaderRow decides from the first raw row alone whether it holds
// column labels. Labels are short and mutually distinct; data rows tend to
// carry long text or repeated codes. The heuristic is allowed to be wrong on
// adversarial input.
func LooksLikeHeaderRow(row []any) bool {
	return looksLikeHeader(normalizeRow(row))
}

func looksLikeHeader(cells []string) bool {
	var filled []string
	for _, c := range cells {
		if c != "" {
			filled = append(filled, c)
		}
	}
	if len(filled) == 0 {
		return false
	}

	distinct := make(map[string]struct{}, len(filled))
	totalLen := 0
	for _, c := range filled {
		distinct[strings.ToLower(c)] = struct{}{}
		totalLen += utf8.RuneCountInString(c)
	}

	uniqueRatio := float64(len(distinct)) / float64(len(filled))
	avgLen := float64(totalLen) / float64(len(filled))
	return uniqueRatio > headerMinUniqueRatio && avgLen <= headerMaxAvgLen
}
