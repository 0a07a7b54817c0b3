package ingest

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// valueSampleRows caps how many leading rows feed the value score. Content that
// only shows up past this prefix is under-scored; that trade-off is accepted.
const valueSampleRows = 200

const longValueLen = 30

// textColumnHints are substrings that mark a column name as likely feedback text.
var textColumnHints = []string{
	"feedback", "comment", "review", "message", "issue", "complaint",
	"note", "description", "text", "body", "content", "summary",
}

var numericValueRe = regexp.MustCompile(`^\s*[-+]?\d+(?:[.,]\d+)?\s*$`)

// DetectTextColumn picks the column most likely to hold free-form feedback.
// It reports false when there are no columns or rows, or when every column is
// empty across the sampled rows. Ties go to the earliest column.
func DetectTextColumn(columns []string, rows []TableRow) (string, bool) {
	if len(columns) == 0 || len(rows) == 0 {
		return "", false
	}
	sample := rows
	if len(sample) > valueSampleRows {
		sample = sample[:valueSampleRows]
	}

	best := ""
	bestScore := math.Inf(-1)
	for _, col := range columns {
		score := columnNameScore(col) + columnValueScore(col, sample)
		if score > bestScore {
			best, bestScore = col, score
		}
	}
	if math.IsInf(bestScore, 0) || math.IsNaN(bestScore) {
		return "", false
	}
	return best, true
}

func columnNameScore(name string) float64 {
	name = strings.ToLower(name)
	score := 0.0
	for _, hint := range textColumnHints {
		if strings.Contains(name, hint) {
			score += 4
		}
	}
	if strings.Contains(name, "id") {
		score -= 2
	}
	if strings.Contains(name, "date") || strings.Contains(name, "time") {
		score--
	}
	if strings.Contains(name, "email") || strings.Contains(name, "phone") {
		score--
	}
	return score
}

// columnValueScore is -Inf when the column has no data in the sample.
func columnValueScore(col string, sample []TableRow) float64 {
	var (
		n, totalLen            int
		long, spaced, numerics int
	)
	for _, row := range sample {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		n++
		l := utf8.RuneCountInString(v)
		totalLen += l
		if l >= longValueLen {
			long++
		}
		if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
			spaced++
		}
		if numericValueRe.MatchString(v) {
			numerics++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}

	total := float64(n)
	avgLen := float64(totalLen) / total
	return avgLen*0.1 +
		float64(long)/total*3 +
		float64(spaced)/total*2 -
		float64(numerics)/total*5
}
