package render

import (
	"fmt"
	"strings"

	"noteline/internal/outline"
)

// Tree draws the heading hierarchy, one heading per line, indented by depth.
func Tree(nodes []outline.HeadingNode) string {
	if len(nodes) == 0 {
		return styleMuted().Render("(no headings)")
	}
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", n.Depth))
		b.WriteString(styleMuted().Render(fmt.Sprintf("%d", n.Index)))
		b.WriteByte(' ')
		b.WriteString(styleHeading(n.Level).Render(n.Title))
		b.WriteString(styleMuted().Render(fmt.Sprintf(" (h%d)", n.Level)))
	}
	return b.String()
}

// Line is what Listing needs to know about one line.
type Line struct {
	Index   int
	Text    string
	Heading bool
	Level   int
	Dirty   bool
}

// Listing prints lines with their index, marking unsaved ones.
func Listing(lines []Line) string {
	width := len(fmt.Sprint(len(lines) - 1))
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := " "
		if l.Dirty {
			mark = styleDirty().Render("*")
		}
		b.WriteString(styleMuted().Render(fmt.Sprintf("%*d", width, l.Index)))
		b.WriteString(mark)
		b.WriteByte(' ')
		if l.Heading {
			b.WriteString(styleHeading(l.Level).Render(l.Text))
		} else {
			b.WriteString(l.Text)
		}
	}
	return b.String()
}
