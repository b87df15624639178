package warehouse

import "fmt"

// Table is a tabular query result. Every row has len(Columns) cells;
// SQL NULL is rendered as "NULL".
type Table struct {
	Columns []string
	Rows    [][]string

	// Total is the row count reported by the server; it exceeds len(Rows)
	// when the result was truncated.
	Total     int64
	Truncated bool
}

// Empty reports whether the query returned no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Status is a short summary such as "(3 rows)" or "(100 of 12k rows)".
func (t *Table) Status() string {
	n := len(t.Rows)
	if t.Truncated && t.Total > int64(n) {
		return fmt.Sprintf("(%d of %s rows)", n, FormatRowCount(t.Total))
	}
	return fmt.Sprintf("(%d row%s)", n, plural(n))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatRowCount formats a row count for compact display:
//   - under 1000: exact number (e.g. "42", "999")
//   - 1000..999499: Xk (e.g. "1k", "999k")
//   - 999500+: XM (e.g. "1M", "10M")
func FormatRowCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 999500 {
		return fmt.Sprintf("%dk", (n+500)/1000)
	}
	return fmt.Sprintf("%dM", (n+500000)/1000000)
}
