package outline

// Sections nest like a stack. A heading of level L closes every open section
// of level >= L and opens its own. A content line belongs to one open
// section and closes every section nested deeper than it. An empty line that
// was never stored joins the innermost section and closes nothing. Keeping
// content attached only to open sections is what makes a depth-first walk of
// the stored category tree reproduce document order.

// unassigned marks a content line whose owner has not been resolved yet.
const unassigned = ^LineID(0)

type foldResult struct {
	categories map[LineID]LineID
	parents    map[LineID]LineID
	open       []*Line
}

// fold walks lines top to bottom. With keep set, a content line stays with its
// current heading while that heading's section is open; otherwise (and for
// unresolved lines) it joins the innermost open section.
func fold(lines []*Line, keep bool) foldResult {
	res := foldResult{
		categories: make(map[LineID]LineID, len(lines)),
		parents:    map[LineID]LineID{},
	}
	stack := make([]*Line, 0, MaxHeadingLevel)
	for _, l := range lines {
		if l.kind == KindHeading {
			for len(stack) > 0 && stack[len(stack)-1].level >= l.level {
				stack = stack[:len(stack)-1]
			}
			parent := RootRef
			if len(stack) > 0 {
				parent = stack[len(stack)-1].id
			}
			res.parents[l.id] = parent
			stack = append(stack, l)
			continue
		}
		at := len(stack) - 1
		if !l.Persisted() && l.Empty() {
			// Never stored, so it must not close sections: a reload would
			// not see it.
			if at < 0 {
				res.categories[l.id] = RootRef
			} else {
				res.categories[l.id] = stack[at].id
			}
			continue
		}
		if keep && l.category != unassigned {
			if l.category == RootRef {
				at = -1
			} else {
				for j := len(stack) - 1; j >= 0; j-- {
					if stack[j].id == l.category {
						at = j
						break
					}
				}
			}
		}
		if at < 0 {
			res.categories[l.id] = RootRef
		} else {
			res.categories[l.id] = stack[at].id
		}
		stack = stack[:at+1]
	}
	res.open = stack
	return res
}

// AssignCategories is the full reassignment pass: every content line goes to
// the nearest heading above it, ignoring current assignments.
func AssignCategories(lines []*Line) map[LineID]LineID {
	return fold(lines, false).categories
}

// RepairCategories keeps every content line with its current heading while
// that heading's section is still open and resolves everything else to the
// innermost open section.
func RepairCategories(lines []*Line) map[LineID]LineID {
	return fold(lines, true).categories
}

// ResolveParents returns, for every heading, the innermost open heading of a
// lower level above it (RootRef when there is none).
func ResolveParents(lines []*Line) map[LineID]LineID {
	return fold(lines, true).parents
}

// FindParentForHeading scans backward from the heading at index and returns the
// nearest heading with a lower level whose section is still open, or nil when
// the heading sits at the root.
func (d *Document) FindParentForHeading(index int) (*Line, error) {
	if index < 0 || index >= len(d.lines) {
		return nil, indexError("find parent", index, len(d.lines))
	}
	l := d.lines[index]
	if l.kind != KindHeading {
		return nil, nil
	}
	open := fold(d.lines[:index], true).open
	for j := len(open) - 1; j >= 0; j-- {
		if open[j].level < l.level {
			return open[j], nil
		}
	}
	return nil, nil
}

// FindPreviousCategory returns the innermost heading open just before index
// whose level is at most maxLevel, or nil when content there falls to the
// root. Pass MaxHeadingLevel to accept any level.
func (d *Document) FindPreviousCategory(index, maxLevel int) *Line {
	if index > len(d.lines) {
		index = len(d.lines)
	}
	if index < 0 {
		return nil
	}
	open := fold(d.lines[:index], true).open
	for j := len(open) - 1; j >= 0; j-- {
		if open[j].level <= maxLevel {
			return open[j]
		}
	}
	return nil
}

// FindCurrentCategoryID scans backward from position (inclusive) for the
// nearest heading that has been persisted and returns its category id. It
// falls back to the subject's root category.
func (d *Document) FindCurrentCategoryID(position int) int64 {
	if position >= len(d.lines) {
		position = len(d.lines) - 1
	}
	for i := position; i >= 0; i-- {
		l := d.lines[i]
		if l.kind == KindHeading && l.categoryID != 0 {
			return l.categoryID
		}
	}
	return d.rootCategoryID
}

// HeadingNode is one entry of the document's table of contents.
type HeadingNode struct {
	Line   LineID `json:"line"`
	Index  int    `json:"index"`
	Level  int    `json:"level"`
	Depth  int    `json:"depth"`
	Title  string `json:"title"`
	Parent LineID `json:"parent,omitempty"`
}

// Headings lists headings in document order with their nesting depth.
func (d *Document) Headings() []HeadingNode {
	parents := ResolveParents(d.lines)
	depth := map[LineID]int{}
	out := []HeadingNode{}
	for i, l := range d.lines {
		if l.kind != KindHeading {
			continue
		}
		p := parents[l.id]
		dep := 0
		if p != RootRef {
			dep = depth[p] + 1
		}
		depth[l.id] = dep
		out = append(out, HeadingNode{
			Line:   l.id,
			Index:  i,
			Level:  l.level,
			Depth:  dep,
			Title:  l.Title(),
			Parent: p,
		})
	}
	return out
}
