package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// isoLayout matches the millisecond ISO-8601 form used for date cells.
const isoLayout = "2006-01-02T15:04:05.000Z"

// NormalizeCell renders a raw parser value as its canonical string.
// Absent values become "", never a placeholder.
func NormalizeCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case bool:
		return strconv.FormatBool(c)
	case int:
		return strconv.Itoa(c)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", c)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", c)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case time.Time:
		if c.IsZero() {
			return ""
		}
		return c.UTC().Format(isoLayout)
	case *time.Time:
		if c == nil {
			return ""
		}
		return NormalizeCell(*c)
	case fmt.Stringer:
		return strings.TrimSpace(c.String())
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

func normalizeRow(raw []any) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = NormalizeCell(v)
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func syntheticColumn(i int) string {
	return "Column " + strconv.Itoa(i+1)
}
