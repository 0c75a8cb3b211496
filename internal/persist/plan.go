package persist

import "noteline/internal/outline"

type writeKind int

const (
	writeInsert writeKind = iota + 1
	writeUpdate
	writeRenumber
)

// write is one planned row write. owner is the parent heading of a heading,
// or the owning heading of a content line.
type write struct {
	kind  writeKind
	line  *outline.Line
	index int
	order int
	owner outline.LineID
}

// plan is the full set of writes for one save. Headings come first, in
// document order, so a parent is always written before its children.
type plan struct {
	headings  []write
	contents  []write
	deletions []outline.Deletion
}

func (p plan) empty() bool {
	return len(p.headings) == 0 && len(p.contents) == 0 && len(p.deletions) == 0
}

// buildPlan compares every line with its last saved state. A line's target
// order is its current display order, so a reload followed by a save writes
// nothing. With force set every line is rewritten.
func buildPlan(doc *outline.Document, force bool) plan {
	lines := doc.Lines()
	parents := outline.ResolveParents(lines)
	var p plan
	for i, l := range lines {
		w := write{line: l, index: i, order: l.DisplayOrder()}
		saved, hasSaved := l.Saved()
		if l.IsHeading() {
			w.owner = parents[l.ID()]
			parentID, known := knownParentID(doc, w.owner)
			switch {
			case !l.Persisted():
				w.kind = writeInsert
			case force || !hasSaved || !known ||
				saved.Content != l.Content() || saved.ParentID != parentID:
				w.kind = writeUpdate
			case saved.Order != w.order:
				w.kind = writeRenumber
			default:
				continue
			}
			p.headings = append(p.headings, w)
			continue
		}

		// Nothing to store for a line that was never written and holds nothing.
		if !l.Persisted() && l.Empty() {
			continue
		}
		w.owner = l.CategoryRef()
		categoryID, known := knownCategoryID(doc, w.owner)
		switch {
		case !l.Persisted():
			w.kind = writeInsert
		case force || !hasSaved || !known ||
			saved.Content != l.Content() || saved.ImageURL != l.ImageURL() || saved.CategoryID != categoryID:
			w.kind = writeUpdate
		case saved.Order != w.order:
			w.kind = writeRenumber
		default:
			continue
		}
		p.contents = append(p.contents, w)
	}
	p.deletions = doc.PendingDeletions()
	return p
}

// knownParentID is knownCategoryID for a heading's parent. Top-level headings
// have no parent row.
func knownParentID(doc *outline.Document, ref outline.LineID) (int64, bool) {
	if ref == outline.RootRef {
		return 0, true
	}
	return knownCategoryID(doc, ref)
}

// knownCategoryID resolves a heading reference to a category id that already
// exists in storage.
func knownCategoryID(doc *outline.Document, ref outline.LineID) (int64, bool) {
	if ref == outline.RootRef {
		return doc.RootCategoryID(), true
	}
	l := doc.LineByID(ref)
	if l == nil || !l.IsHeading() || l.PersistedCategoryID() == 0 {
		return 0, false
	}
	return l.PersistedCategoryID(), true
}
