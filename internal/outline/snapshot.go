package outline

import "slices"

// LineState is the captured state of one line.
type LineState struct {
	ID           LineID
	Content      string
	Kind         Kind
	Level        int
	ImageURL     string
	DisplayOrder int
	CategoryRef  LineID
	CategoryID   int64
	ContentID    int64
}

// Snapshot is an immutable copy of the document's lines, in order.
type Snapshot struct {
	Lines []LineState
}

func (s Snapshot) Len() int { return len(s.Lines) }

// Contents lists the text of every line in order.
func (s Snapshot) Contents() []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = l.Content
	}
	return out
}

func (d *Document) Snapshot() Snapshot {
	out := Snapshot{Lines: make([]LineState, len(d.lines))}
	for i, l := range d.lines {
		out.Lines[i] = LineState{
			ID:           l.id,
			Content:      l.content,
			Kind:         l.kind,
			Level:        l.level,
			ImageURL:     l.imageURL,
			DisplayOrder: l.order,
			CategoryRef:  l.category,
			CategoryID:   l.categoryID,
			ContentID:    l.contentID,
		}
	}
	return out
}

// Restore replaces the document's lines with a snapshot.
//
// Storage handles are taken from the live document rather than the snapshot,
// since saves may have happened in between: a line that still exists keeps
// its current ids; a line that was removed gets back an id whose deletion is
// still pending, or none at all (it will be re-inserted). Lines absent from
// the snapshot are removed as if by RemoveAt.
func (d *Document) Restore(s Snapshot) {
	if len(s.Lines) == 0 {
		return
	}
	live := make(map[LineID]*Line, len(d.lines))
	for _, l := range d.lines {
		live[l.id] = l
	}
	keep := make(map[LineID]bool, len(s.Lines))
	for _, st := range s.Lines {
		keep[st.ID] = true
	}
	for i, l := range d.lines {
		if !keep[l.id] {
			d.queueRemoval(i)
		}
	}

	restored := make([]*Line, 0, len(s.Lines))
	for _, st := range s.Lines {
		l := live[st.ID]
		if l == nil {
			l = &Line{id: st.ID}
			if st.ID > d.nextID {
				d.nextID = st.ID
			}
		}
		l.content = st.Content
		l.kind = st.Kind
		l.level = st.Level
		l.imageURL = st.ImageURL
		l.order = st.DisplayOrder
		l.category = st.CategoryRef
		d.reclaim(l)
		restored = append(restored, l)
	}
	d.lines = restored
	for i := range d.lines {
		d.normalizePersistence(i, d.fallbackFor(i, MaxHeadingLevel))
	}
	if !ordersIncreasing(d.lines) {
		d.Renumber()
	}
	d.reassign(false)
	d.emit(Event{Type: EventRestored})
	d.check()
}

// reclaim cancels a pending deletion of this line's own row when the restored
// kind needs that row again.
func (d *Document) reclaim(l *Line) {
	want := DeleteContent
	if l.kind == KindHeading {
		want = DeleteCategory
	}
	for i, p := range d.pending {
		if p.Line != l.id || p.Kind != want {
			continue
		}
		if want == DeleteCategory && l.categoryID == 0 {
			l.categoryID = p.ID
		} else if want == DeleteContent && l.contentID == 0 {
			l.contentID = p.ID
		} else {
			continue
		}
		d.pending = slices.Delete(d.pending, i, i+1)
		// The row may hold stale values; force an upsert.
		l.hasSaved = false
		return
	}
}
