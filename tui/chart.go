package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/charmbracelet/lipgloss"
)

const maxChartRows = 30

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// defaultAxes picks the first column as X and the first numeric column
// after it as Y.
func defaultAxes(t *warehouse.Table) (x, y int) {
	if t == nil || len(t.Columns) < 2 {
		return 0, 0
	}
	y = 1
	for i := 1; i < len(t.Columns); i++ {
		if numericColumn(t, i) {
			return 0, i
		}
	}
	return 0, y
}

// nextAxis cycles col to the next column that differs from other.
func nextAxis(t *warehouse.Table, col, other int) int {
	n := len(t.Columns)
	if n < 2 {
		return col
	}
	for i := 1; i <= n; i++ {
		c := (col + i) % n
		if c != other {
			return c
		}
	}
	return col
}

func numericColumn(t *warehouse.Table, col int) bool {
	seen := false
	for _, row := range t.Rows {
		if col >= len(row) || row[col] == "NULL" {
			continue
		}
		if _, err := strconv.ParseFloat(row[col], 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// renderChart draws column y against column x as horizontal bars or a
// sparkline.
func renderChart(t *warehouse.Table, x, y int, kind chartKind, width int) []string {
	if len(t.Columns) < 2 {
		return []string{StyleDimmed.Render("Charts need at least two columns.")}
	}
	if !numericColumn(t, y) {
		return []string{StyleDimmed.Render(fmt.Sprintf("Column %s is not numeric; press y to pick another.", t.Columns[y]))}
	}

	rows := t.Rows
	if len(rows) > maxChartRows {
		rows = rows[:maxChartRows]
	}
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	maxV := 0.0
	// sparkline scale, always spanning zero
	minV, topV := 0.0, 0.0
	labelW := 0
	for i, row := range rows {
		labels[i] = clip(row[x], 20)
		if n := len([]rune(labels[i])); n > labelW {
			labelW = n
		}
		v, _ := strconv.ParseFloat(row[y], 64)
		values[i] = v
		maxV = math.Max(maxV, math.Abs(v))
		minV = math.Min(minV, v)
		topV = math.Max(topV, v)
	}

	header := StyleDimmed.Render(fmt.Sprintf("%s chart · x: %s · y: %s", kind, t.Columns[x], t.Columns[y]))
	lines := []string{header}

	if kind == chartLine {
		var spark strings.Builder
		pos := lipgloss.NewStyle().Foreground(ColorSnow)
		neg := lipgloss.NewStyle().Foreground(ColorError)
		for _, v := range values {
			level := 0
			if topV > minV {
				level = int(math.Round((v - minV) / (topV - minV) * float64(len(sparkLevels)-1)))
			}
			if v < 0 {
				spark.WriteString(neg.Render(string(sparkLevels[level])))
			} else {
				spark.WriteString(pos.Render(string(sparkLevels[level])))
			}
		}
		summary := fmt.Sprintf("%s … %s  (max %s)", labels[0], labels[len(labels)-1], formatNumber(topV))
		if minV < 0 {
			summary = fmt.Sprintf("%s … %s  (min %s, max %s)", labels[0], labels[len(labels)-1], formatNumber(minV), formatNumber(topV))
		}
		lines = append(lines, spark.String(), StyleDimmed.Render(summary))
		return lines
	}

	barW := width - labelW - 14
	if barW < 5 {
		barW = 5
	}
	bar := lipgloss.NewStyle().Foreground(ColorSnow)
	negBar := lipgloss.NewStyle().Foreground(ColorError)
	for i, v := range values {
		n := 0
		if maxV > 0 {
			n = int(math.Round(math.Abs(v) / maxV * float64(barW)))
		}
		label := labels[i] + strings.Repeat(" ", labelW-len([]rune(labels[i])))
		drawn := bar.Render(strings.Repeat("█", n))
		if v < 0 {
			// negatives are hatched
			drawn = negBar.Render(strings.Repeat("░", n))
		}
		lines = append(lines, label+" "+drawn+" "+formatNumber(v))
	}
	if len(t.Rows) > len(rows) {
		lines = append(lines, StyleDimmed.Render(fmt.Sprintf("first %d of %d rows", len(rows), len(t.Rows))))
	}
	return lines
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
