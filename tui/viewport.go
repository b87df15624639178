package tui

import (
	"fmt"
	"strings"
)

// Viewport is a vertically scrolling window over pre-rendered lines.
// Lines may carry ANSI styling; they are never cut horizontally.
type Viewport struct {
	width   int
	height  int
	lines   []string
	scrollY int
	follow  bool // stick to the bottom when content grows
}

func NewViewport(width, height int) *Viewport {
	return &Viewport{width: width, height: height, follow: true}
}

// SetLines replaces the content.
func (v *Viewport) SetLines(lines []string) {
	v.lines = lines
	if v.follow {
		v.scrollY = v.maxScrollY()
	}
	v.clampScroll()
}

func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.follow = false
	v.clampScroll()
}

func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
	v.follow = v.scrollY == v.maxScrollY()
}

func (v *Viewport) PageUp()   { v.ScrollUp(v.height) }
func (v *Viewport) PageDown() { v.ScrollDown(v.height) }

// Home scrolls to the top.
func (v *Viewport) Home() {
	v.scrollY = 0
	v.follow = false
}

// End scrolls to the bottom and keeps following new content.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
	v.follow = true
}

// Reveal scrolls the minimum amount that makes lines [from, to] visible.
func (v *Viewport) Reveal(from, to int) {
	if from < v.scrollY {
		v.scrollY = from
	} else if to >= v.scrollY+v.height {
		v.scrollY = to - v.height + 1
	}
	v.clampScroll()
	v.follow = v.scrollY == v.maxScrollY()
}

// Render returns exactly height lines.
func (v *Viewport) Render() string {
	end := v.scrollY + v.height
	if end > len(v.lines) {
		end = len(v.lines)
	}
	var visible []string
	if v.scrollY < end {
		visible = append(visible, v.lines[v.scrollY:end]...)
	}
	for len(visible) < v.height {
		visible = append(visible, "")
	}
	if ind := v.scrollIndicator(); ind != "" && v.height > 0 {
		visible[len(visible)-1] = ind
	}
	return strings.Join(visible, "\n")
}

func (v *Viewport) clampScroll() {
	if maxY := v.maxScrollY(); v.scrollY > maxY {
		v.scrollY = maxY
	}
	if v.scrollY < 0 {
		v.scrollY = 0
	}
}

func (v *Viewport) maxScrollY() int {
	m := len(v.lines) - v.height
	if m < 0 {
		return 0
	}
	return m
}

// scrollIndicator replaces the last line when there is more below.
func (v *Viewport) scrollIndicator() string {
	if len(v.lines) <= v.height || v.scrollY >= v.maxScrollY() {
		return ""
	}
	below := len(v.lines) - (v.scrollY + v.height)
	return StyleDimmed.Render(fmt.Sprintf("  ↓ %d more line(s)", below+1))
}
