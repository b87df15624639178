// render.go turns a conversation snapshot into transcript lines.
//
// Rendering also collects the selectable elements (suggestion buttons,
// SQL expanders and result panels) with their line ranges so the chat
// view can move a cursor over them and keep the selection visible.
package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/conversation"
	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxTableRows = 20
	maxCellWidth = 30
)

// resultKey addresses one content item of one message.
type resultKey struct {
	Msg  int
	Item int
}

type chartKind int

const (
	chartBar chartKind = iota
	chartLine
)

func (k chartKind) String() string {
	if k == chartLine {
		return "Line"
	}
	return "Bar"
}

// resultView is the execution state and display options of one SQL item.
type resultView struct {
	loading   bool
	cached    bool
	table     *warehouse.Table
	err       error
	showChart bool
	x, y      int
	kind      chartKind
}

type itemKind int

const (
	itemSuggestion itemKind = iota
	itemSQL
	itemResult
)

type selectable struct {
	kind     itemKind
	key      resultKey
	text     string
	from, to int
}

// transcriptState holds the per-item UI state the snapshot does not carry.
type transcriptState struct {
	results  map[resultKey]*resultView
	expanded map[resultKey]bool
	feedback map[string]bool // request id → positive
}

func newTranscriptState() *transcriptState {
	return &transcriptState{
		results:  map[resultKey]*resultView{},
		expanded: map[resultKey]bool{},
		feedback: map[string]bool{},
	}
}

type renderer struct {
	width    int
	selected int
	lines    []string
	items    []selectable
}

func (r *renderer) add(lines ...string) {
	r.lines = append(r.lines, lines...)
}

func (r *renderer) wrap(text, indent string) {
	w := r.width - len(indent)
	if w < 10 {
		w = 10
	}
	for _, line := range strings.Split(lipgloss.NewStyle().Width(w).Render(text), "\n") {
		r.add(indent + strings.TrimRight(line, " "))
	}
}

// begin starts a selectable element and reports whether it is selected.
func (r *renderer) begin(kind itemKind, key resultKey, text string) bool {
	r.items = append(r.items, selectable{kind: kind, key: key, text: text, from: len(r.lines)})
	return len(r.items)-1 == r.selected
}

func (r *renderer) end() {
	r.items[len(r.items)-1].to = len(r.lines) - 1
}

// render draws the whole transcript.
func (t *transcriptState) render(s conversation.State, width, selected int) ([]string, []selectable) {
	r := &renderer{width: width, selected: selected}

	if len(s.Messages) == 0 && !s.Awaiting {
		if s.Model == "" {
			r.add(StyleDimmed.Render("Select a semantic model in the sidebar to start."))
		} else {
			r.add(StyleDimmed.Render("Ask a question about " + s.Model + "."))
		}
	}

	for mi, m := range s.Messages {
		if m.Role == analyst.RoleUser {
			r.add(StyleUser.Render("You"))
		} else {
			r.add(StyleAnalyst.Render("Analyst"))
		}
		for ii, item := range m.Content {
			key := resultKey{Msg: mi, Item: ii}
			switch v := item.(type) {
			case analyst.Text:
				r.wrap(v.Text, "  ")
			case analyst.Suggestions:
				for si, sug := range v.Suggestions {
					line := fmt.Sprintf("  [%d] %s", si+1, sug)
					if r.begin(itemSuggestion, key, sug) {
						r.add(StyleSelected.Render(line))
					} else {
						r.add(StyleButton.Render(line))
					}
					r.end()
				}
			case analyst.SQL:
				t.renderSQL(r, key, v)
				t.renderResult(r, key)
			}
		}
		if m.Role == analyst.RoleAnalyst && m.RequestID != "" {
			meta := "  request id: " + m.RequestID
			if positive, ok := t.feedback[m.RequestID]; ok {
				if positive {
					meta += "  👍 feedback sent"
				} else {
					meta += "  👎 feedback sent"
				}
			}
			r.add(StyleDimmed.Render(meta))
		}
		r.add("")
	}

	if s.Awaiting {
		r.add(StyleDimmed.Render("  ⏳ Waiting for Analyst's response..."))
	}
	return r.lines, r.items
}

func (t *transcriptState) renderSQL(r *renderer, key resultKey, sql analyst.SQL) {
	open := t.expanded[key]
	arrow := "▸"
	if open {
		arrow = "▾"
	}
	header := "  " + arrow + " SQL Query"
	verified := sql.Confidence != nil && sql.Confidence.VerifiedQueryUsed != nil

	selected := r.begin(itemSQL, key, sql.Statement)
	if selected {
		header = StyleSelected.Render(header)
	} else {
		header = StyleButton.Render(header)
	}
	if verified {
		header += " " + StyleBadge.Render("✅ Verified Query Used")
	}
	r.add(header)

	if open {
		for _, line := range strings.Split(sql.Statement, "\n") {
			r.add("    " + StyleCode.Render(line))
		}
		if verified {
			vq := sql.Confidence.VerifiedQueryUsed
			r.add("",
				"    "+StyleBold.Render("Name: ")+vq.Name,
				"    "+StyleBold.Render("Question: ")+vq.Question,
				"    "+StyleBold.Render("Verified by: ")+vq.VerifiedBy)
			for _, line := range strings.Split(vq.SQL, "\n") {
				r.add("    " + StyleCode.Render(line))
			}
		}
	}
	r.end()
}

func (t *transcriptState) renderResult(r *renderer, key resultKey) {
	res := t.results[key]
	selected := r.begin(itemResult, key, "")

	tabs := " Data " + StyleDimmed.Render(" Chart ")
	if res != nil && res.showChart {
		tabs = StyleDimmed.Render(" Data ") + " Chart "
	}
	header := "  Results"
	if selected {
		header = StyleSelected.Render(header)
	} else {
		header = StyleBold.Render(header)
	}
	if res != nil && res.cached {
		tabs += StyleDimmed.Render("  (cached)")
	}
	r.add(header + "  " + tabs)

	switch {
	case res == nil || res.loading:
		r.add(StyleDimmed.Render("    ⏳ Running query..."))
	case res.err != nil:
		r.wrap(StyleError.Render("SQL Error: "+res.err.Error()), "    ")
	case res.table.Empty():
		r.add("    No data returned.")
	case res.showChart:
		for _, line := range renderChart(res.table, res.x, res.y, res.kind, r.width-4) {
			r.add("    " + line)
		}
	default:
		for _, line := range renderTable(res.table, maxTableRows) {
			r.add("    " + line)
		}
	}
	r.end()
}

// renderTable draws an aligned text table with at most maxRows rows.
func renderTable(t *warehouse.Table, maxRows int) []string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = cellWidth(c)
	}
	shown := t.Rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, row := range shown {
		for i := range widths {
			if i < len(row) && cellWidth(row[i]) > widths[i] {
				widths[i] = cellWidth(row[i])
			}
		}
	}

	format := func(cells []string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			var c string
			if i < len(cells) {
				c = clip(cells[i], maxCellWidth)
			}
			parts[i] = c + strings.Repeat(" ", w-utf8.RuneCountInString(c))
		}
		return strings.TrimRight(strings.Join(parts, " │ "), " ")
	}

	lines := []string{StyleBold.Render(format(t.Columns))}
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	lines = append(lines, StyleDimmed.Render(strings.Join(sep, "─┼─")))
	for _, row := range shown {
		lines = append(lines, format(row))
	}

	footer := t.Status()
	if hidden := len(t.Rows) - len(shown); hidden > 0 {
		footer = fmt.Sprintf("%s, %d not shown", footer, hidden)
	}
	return append(lines, StyleDimmed.Render(footer))
}

func cellWidth(s string) int {
	n := utf8.RuneCountInString(s)
	if n > maxCellWidth {
		return maxCellWidth
	}
	return n
}

func clip(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-1]) + "…"
}
