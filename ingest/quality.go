// CLAUDE:SUMMARY PDF extraction quality metrics: printable/wordlike ratios and OCR hint.
// CLAUDE:EXPORTS ExtractionQuality
package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractionQuality captures metrics about PDF text extraction quality.
// It is informational; a poor score never turns into a warning.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
}

// NeedsOCR reports whether the PDF is likely a scan whose text lives in images.
func (q *ExtractionQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

// computePrintableRatio returns the share of runes a reader can see or that
// lay out text. Glyph-mapping residue (private use area, U+FFFD, stray control
// codes) counts against it. Empty text scores 1.
func computePrintableRatio(text string) float64 {
	var total, good int
	for _, r := range text {
		total++
		if !isExtractionResidue(r) && (unicode.IsPrint(r) || unicode.IsSpace(r)) {
			good++
		}
	}
	return ratio(good, total, 1)
}

// isExtractionResidue flags runes left behind by fonts that lack a usable
// ToUnicode map.
func isExtractionResidue(r rune) bool {
	if r == utf8.RuneError || unicode.In(r, unicode.Co) {
		return true
	}
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}

// computeWordlikeRatio returns the share of whitespace-separated tokens whose
// rune length is plausible for a word (2 to 15).
func computeWordlikeRatio(text string) float64 {
	var tokens, words int
	for _, tok := range strings.Fields(text) {
		tokens++
		if n := utf8.RuneCountInString(tok); n >= minWordRunes && n <= maxWordRunes {
			words++
		}
	}
	return ratio(words, tokens, 0)
}

const (
	minWordRunes = 2
	maxWordRunes = 15
)

func ratio(part, whole int, empty float64) float64 {
	if whole == 0 {
		return empty
	}
	return float64(part) / float64(whole)
}
