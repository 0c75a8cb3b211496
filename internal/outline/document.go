package outline

import (
	"slices"
	"strings"
)

type DeletionKind int

const (
	DeleteContent DeletionKind = iota + 1
	DeleteCategory
)

func (k DeletionKind) String() string {
	if k == DeleteCategory {
		return "category"
	}
	return "content"
}

// Deletion is a storage row that must be removed by the next save. For
// categories, Fallback names the heading that inherited the removed heading's
// content (RootRef for the subject's root category).
type Deletion struct {
	Kind     DeletionKind
	ID       int64
	Line     LineID
	Fallback LineID
}

// Document is the ordered line sequence of one subject. It is not safe for
// concurrent use; callers serialize access (see session.Session).
type Document struct {
	subjectID      int64
	rootCategoryID int64

	lines   []*Line
	nextID  LineID
	pending []Deletion

	obs observers
}

// NewDocument returns a document holding a single empty content line.
func NewDocument(subjectID, rootCategoryID int64) *Document {
	d := &Document{subjectID: subjectID, rootCategoryID: rootCategoryID}
	l := newLine(d.newID(), "")
	l.order = 1
	l.category = RootRef
	d.lines = []*Line{l}
	return d
}

// Loaded is a line reconstructed from storage.
type Loaded struct {
	Content  string
	Kind     Kind
	ImageURL string
	Order    int

	CategoryID int64
	ContentID  int64

	// ParentID is the stored parent of a heading; StoredCategoryID is the
	// stored category of a content row.
	ParentID         int64
	StoredCategoryID int64
}

// FromLoaded rebuilds a document from persisted lines given in document order.
func FromLoaded(subjectID, rootCategoryID int64, loaded []Loaded) *Document {
	if len(loaded) == 0 {
		return NewDocument(subjectID, rootCategoryID)
	}
	d := &Document{subjectID: subjectID, rootCategoryID: rootCategoryID}
	for _, ld := range loaded {
		var l *Line
		if ld.Kind == KindImage {
			l = newImageLine(d.newID(), ld.ImageURL, ld.Content)
		} else {
			l = newLine(d.newID(), ld.Content)
		}
		l.order = ld.Order
		l.categoryID = ld.CategoryID
		l.contentID = ld.ContentID
		l.saved = Saved{
			Content:    l.content,
			ImageURL:   l.imageURL,
			Order:      ld.Order,
			ParentID:   ld.ParentID,
			CategoryID: ld.StoredCategoryID,
		}
		l.hasSaved = true
		d.lines = append(d.lines, l)
	}
	owners := map[int64]LineID{}
	for _, l := range d.lines {
		if l.kind == KindHeading && l.categoryID != 0 {
			owners[l.categoryID] = l.id
		}
	}
	for _, l := range d.lines {
		if l.kind == KindHeading {
			continue
		}
		switch id := l.saved.CategoryID; {
		case id == 0 || id == rootCategoryID:
			l.category = RootRef
		case owners[id] != 0:
			l.category = owners[id]
		}
	}
	for i := range d.lines {
		d.normalizePersistence(i, d.fallbackFor(i, MaxHeadingLevel))
	}
	if !ordersIncreasing(d.lines) {
		d.Renumber()
	}
	d.reassign(false)
	d.check()
	return d
}

func (d *Document) newID() LineID {
	d.nextID++
	return d.nextID
}

func (d *Document) SubjectID() int64      { return d.subjectID }
func (d *Document) RootCategoryID() int64 { return d.rootCategoryID }
func (d *Document) Len() int              { return len(d.lines) }

func (d *Document) SetRootCategoryID(id int64) { d.rootCategoryID = id }

// Line returns the line at index, or nil when out of range.
func (d *Document) Line(index int) *Line {
	if index < 0 || index >= len(d.lines) {
		return nil
	}
	return d.lines[index]
}

// Lines returns the lines in document order. The slice is a copy; the lines
// are shared and must not be mutated directly.
func (d *Document) Lines() []*Line { return slices.Clone(d.lines) }

// Index returns the position of the line with the given handle, or -1.
func (d *Document) Index(id LineID) int {
	for i, l := range d.lines {
		if l.id == id {
			return i
		}
	}
	return -1
}

func (d *Document) LineByID(id LineID) *Line {
	if i := d.Index(id); i >= 0 {
		return d.lines[i]
	}
	return nil
}

// Subscribe registers fn for every change notification. The returned func
// cancels the subscription.
func (d *Document) Subscribe(fn func(Event)) func() { return d.obs.subscribe(fn) }

func (d *Document) emit(e Event) { d.obs.emit(e) }

// PendingDeletions returns storage rows queued for removal by the next save.
func (d *Document) PendingDeletions() []Deletion { return slices.Clone(d.pending) }

// InsertAt inserts a new line holding text at index (0..Len()).
func (d *Document) InsertAt(index int, text string) (*Line, error) {
	if index < 0 || index > len(d.lines) {
		return nil, indexError("insert", index, len(d.lines))
	}
	l := newLine(d.newID(), text)
	d.insert(index, l)
	return l, nil
}

// InsertImage inserts an image line. Image lines keep their kind for life.
func (d *Document) InsertImage(index int, url, caption string) (*Line, error) {
	if index < 0 || index > len(d.lines) {
		return nil, indexError("insert image", index, len(d.lines))
	}
	if strings.TrimSpace(url) == "" {
		return nil, ErrImageURL
	}
	l := newImageLine(d.newID(), url, caption)
	d.insert(index, l)
	return l, nil
}

func (d *Document) insert(index int, l *Line) {
	l.order = d.orderFor(index)
	d.lines = slices.Insert(d.lines, index, l)
	if l.kind == KindHeading {
		l.category = RootRef
		d.adopt(index, d.fallbackFor(index, MaxHeadingLevel))
	}
	d.reassign(false)
	d.emit(Event{Type: EventInserted, Line: l.id, Index: index})
	d.check()
}

// RemoveAt removes the line at index. A heading's content moves to the
// previous heading of the same or a higher level (or the root category) and a
// persisted category row is queued for deletion; persisted content rows are
// queued directly. The document is never left empty.
func (d *Document) RemoveAt(index int) (*Line, error) {
	if index < 0 || index >= len(d.lines) {
		return nil, indexError("remove", index, len(d.lines))
	}
	l := d.lines[index]
	if l.kind == KindHeading {
		d.release(l.id, d.fallbackFor(index, l.level))
	}
	d.queueRemoval(index)
	d.lines = slices.Delete(d.lines, index, index+1)

	var reinstated *Line
	if len(d.lines) == 0 {
		reinstated = newLine(d.newID(), "")
		reinstated.order = 1
		d.lines = []*Line{reinstated}
	}
	d.reassign(false)
	d.emit(Event{Type: EventRemoved, Line: l.id, Index: index})
	if reinstated != nil {
		d.emit(Event{Type: EventInserted, Line: reinstated.id, Index: 0})
	}
	d.check()
	return l, nil
}

func (d *Document) queueRemoval(index int) {
	l := d.lines[index]
	switch {
	case l.kind == KindHeading && l.categoryID != 0:
		d.queue(Deletion{Kind: DeleteCategory, ID: l.categoryID, Line: l.id, Fallback: d.fallbackFor(index, l.level)})
	case l.kind != KindHeading && l.contentID != 0:
		d.queue(Deletion{Kind: DeleteContent, ID: l.contentID, Line: l.id})
	}
}

func (d *Document) fallbackFor(index, level int) LineID {
	if p := d.FindPreviousCategory(index, level); p != nil {
		return p.id
	}
	return RootRef
}

// release hands every content line owned by heading to fallback.
func (d *Document) release(heading, fallback LineID) {
	for _, l := range d.lines {
		if l.kind != KindHeading && l.category == heading {
			l.category = fallback
		}
	}
}

// adopt hands the run of content lines directly after index that belongs to
// owner over to the heading at index.
func (d *Document) adopt(index int, owner LineID) {
	h := d.lines[index]
	for _, l := range d.lines[index+1:] {
		if l.kind == KindHeading || l.category != owner {
			return
		}
		l.category = h.id
	}
}

func (d *Document) queue(del Deletion) {
	for _, p := range d.pending {
		if p.Kind == del.Kind && p.ID == del.ID {
			return
		}
	}
	d.pending = append(d.pending, del)
}

// MoveLine moves the line at from next to the line currently at to: before it
// when insertBefore is set, after it otherwise. Afterwards every line is
// renumbered to position+1 and categories are reassigned from scratch.
func (d *Document) MoveLine(from, to int, insertBefore bool) error {
	if from < 0 || from >= len(d.lines) {
		return indexError("move from", from, len(d.lines))
	}
	if to < 0 || to >= len(d.lines) {
		return indexError("move to", to, len(d.lines))
	}
	if from == to {
		return nil
	}
	target := d.lines[to]
	l := d.lines[from]
	d.lines = slices.Delete(d.lines, from, from+1)
	at := slices.Index(d.lines, target)
	if !insertBefore {
		at++
	}
	d.lines = slices.Insert(d.lines, at, l)
	d.Renumber()
	d.reassign(true)
	d.emit(Event{Type: EventMoved, Line: l.id, Index: at, From: from})
	d.check()
	return nil
}

// SetContent replaces the text of the line at index and reclassifies it.
func (d *Document) SetContent(index int, text string) (Transition, error) {
	if index < 0 || index >= len(d.lines) {
		return Transition{}, indexError("set content", index, len(d.lines))
	}
	l := d.lines[index]
	if l.content == l.canonical(text) {
		return Transition{From: l.kind, To: l.kind}, nil
	}
	level, owner := l.level, l.category
	tr := l.setContent(text)
	switch {
	case tr.From == KindHeading:
		d.release(l.id, d.fallbackFor(index, level))
		l.category = unassigned
	case tr.To == KindHeading:
		l.category = RootRef
		d.adopt(index, owner)
	}
	if tr.Changed() {
		d.ClassifyTransition(index, tr)
	}
	d.reassign(false)
	d.emit(Event{Type: EventContentChanged, Line: l.id, Index: index, Transition: tr})
	if tr.Changed() {
		d.emit(Event{Type: EventKindChanged, Line: l.id, Index: index, Transition: tr})
	}
	d.check()
	return tr, nil
}

// ClassifyTransition reconciles storage handles after the line at index
// changed kind.
//
// Content→Heading drops the persisted content row; the line becomes a new
// category on the next save. Heading→Content drops the persisted category
// (its content already moved to the previous heading) and the line is
// re-inserted as an ordinary content row.
func (d *Document) ClassifyTransition(index int, tr Transition) {
	if !tr.Changed() || index < 0 || index >= len(d.lines) {
		return
	}
	fallback := RootRef
	if tr.From == KindHeading {
		fallback = d.fallbackFor(index, MaxHeadingLevel)
	}
	d.normalizePersistence(index, fallback)
}

func (d *Document) normalizePersistence(index int, fallback LineID) {
	l := d.lines[index]
	if l.kind == KindHeading && l.contentID != 0 {
		d.queue(Deletion{Kind: DeleteContent, ID: l.contentID, Line: l.id})
		l.contentID = 0
		l.hasSaved = false
	}
	if l.kind != KindHeading && l.categoryID != 0 {
		d.queue(Deletion{Kind: DeleteCategory, ID: l.categoryID, Line: l.id, Fallback: fallback})
		l.categoryID = 0
		l.hasSaved = false
	}
}

// reassign resolves every content line's owner. With full set the current
// owners are ignored and each line goes to the nearest heading above it.
func (d *Document) reassign(full bool) {
	var m map[LineID]LineID
	if full {
		m = AssignCategories(d.lines)
	} else {
		m = RepairCategories(d.lines)
	}
	for _, l := range d.lines {
		if l.kind == KindHeading {
			l.category = RootRef
			continue
		}
		l.category = m[l.id]
	}
}

// SavedLine is the post-commit state of one persisted line.
type SavedLine struct {
	Line       LineID
	CategoryID int64
	ContentID  int64
	Saved      Saved
}

// Commit is what a successful save reports back to the document.
type Commit struct {
	Lines   []SavedLine
	Deleted []Deletion
}

// ApplyCommit records storage handles and snapshots after a committed save
// and drops executed deletions. Display orders are left as written.
func (d *Document) ApplyCommit(c Commit) {
	for _, sl := range c.Lines {
		l := d.LineByID(sl.Line)
		if l == nil {
			continue
		}
		l.categoryID = sl.CategoryID
		l.contentID = sl.ContentID
		l.saved = sl.Saved
		l.hasSaved = true
	}
	if len(c.Deleted) > 0 {
		done := map[Deletion]bool{}
		for _, x := range c.Deleted {
			done[Deletion{Kind: x.Kind, ID: x.ID}] = true
		}
		d.pending = slices.DeleteFunc(d.pending, func(p Deletion) bool {
			return done[Deletion{Kind: p.Kind, ID: p.ID}]
		})
	}
	d.emit(Event{Type: EventSaved})
	d.check()
}

// Markdown joins the lines back into markdown source.
func (d *Document) Markdown() string {
	var b strings.Builder
	for i, l := range d.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.String())
	}
	return b.String()
}
