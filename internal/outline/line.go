package outline

import (
	"fmt"
	"strings"
)

// LineID is a transient, position-independent handle for a line. It is never
// persisted and never reused within a document.
type LineID uint64

// RootRef is the category reference of content that has no enclosing heading.
const RootRef LineID = 0

// Saved is the last-persisted view of a line.
type Saved struct {
	Content  string
	ImageURL string
	Order    int

	// ParentID is the persisted parent category of a heading at its last save.
	ParentID int64
	// CategoryID is the persisted category of a content line at its last save.
	CategoryID int64
}

type Line struct {
	id       LineID
	content  string
	kind     Kind
	level    int
	imageURL string
	order    int
	category LineID

	categoryID int64
	contentID  int64

	saved    Saved
	hasSaved bool
}

type Transition struct {
	From Kind
	To   Kind
}

func (t Transition) Changed() bool { return t.From != t.To }

func newLine(id LineID, text string) *Line {
	l := &Line{id: id, category: unassigned}
	l.setContent(text)
	return l
}

func newImageLine(id LineID, url, caption string) *Line {
	return &Line{id: id, kind: KindImage, imageURL: strings.TrimSpace(url), content: caption, category: unassigned}
}

// setContent updates text and reclassifies. Image lines keep their kind.
// Heading text is stored as "<marks> <title>", so it is rewritten to that
// form here and reloads unchanged.
func (l *Line) setContent(text string) Transition {
	prev := l.kind
	l.content = text
	if l.kind == KindImage {
		return Transition{From: prev, To: prev}
	}
	l.kind, l.level = Classify(text)
	l.content = l.canonical(text)
	return Transition{From: prev, To: l.kind}
}

// canonical returns text as setContent would store it on this line.
func (l *Line) canonical(text string) string {
	if l.kind == KindImage {
		return text
	}
	if kind, level := Classify(text); kind == KindHeading {
		return HeadingText(level, HeadingTitle(text))
	}
	return text
}

func (l *Line) ID() LineID        { return l.id }
func (l *Line) Content() string   { return l.content }
func (l *Line) Kind() Kind        { return l.kind }
func (l *Line) Level() int        { return l.level }
func (l *Line) ImageURL() string  { return l.imageURL }
func (l *Line) DisplayOrder() int { return l.order }
func (l *Line) IsHeading() bool   { return l.kind == KindHeading }

// CategoryRef is the heading line that owns this content line (RootRef when
// it sits at the top level). The owner always precedes the line and its
// section is still open there. Always RootRef for headings.
func (l *Line) CategoryRef() LineID { return l.category }

// PersistedCategoryID is non-zero once a heading has been durably stored.
func (l *Line) PersistedCategoryID() int64 { return l.categoryID }

// PersistedContentID is non-zero once a content/image line has been durably stored.
func (l *Line) PersistedContentID() int64 { return l.contentID }

func (l *Line) Persisted() bool {
	if l.kind == KindHeading {
		return l.categoryID != 0
	}
	return l.contentID != 0
}

func (l *Line) Saved() (Saved, bool) { return l.saved, l.hasSaved }

// Dirty reports whether the line differs from its last-persisted snapshot.
// Hierarchy changes (parent, owning category) are resolved at save time.
func (l *Line) Dirty() bool {
	if !l.hasSaved || !l.Persisted() {
		return true
	}
	return l.saved.Content != l.content || l.saved.ImageURL != l.imageURL || l.saved.Order != l.order
}

// Empty reports whether there is nothing worth persisting yet.
func (l *Line) Empty() bool {
	if l.kind == KindImage {
		return l.imageURL == ""
	}
	return l.content == ""
}

func (l *Line) Title() string {
	if l.kind != KindHeading {
		return ""
	}
	return HeadingTitle(l.content)
}

func (l *Line) List() ListMarker {
	if l.kind != KindContent {
		return ListMarker{Kind: ListNone, Body: l.content}
	}
	return ParseList(l.content)
}

// ContinuationPrefix is the text a new line inserted after this one starts with.
func (l *Line) ContinuationPrefix() string { return l.List().Next() }

// Placeholder is the hint shown for a line that has no meaningful text yet.
func (l *Line) Placeholder() string {
	switch l.kind {
	case KindHeading:
		return ""
	case KindImage:
		if l.content == "" {
			return "Image caption"
		}
		return ""
	}
	if m := pendingHeadingRe.FindStringSubmatch(l.content); m != nil {
		return fmt.Sprintf("Heading %d", len(m[1]))
	}
	if lm := l.List(); lm.Kind != ListNone && strings.TrimSpace(lm.Body) == "" {
		return "List item"
	}
	if l.content == "" {
		return "Type something…"
	}
	return ""
}

func (l *Line) String() string {
	if l.kind == KindImage {
		return fmt.Sprintf("![%s](%s)", l.content, l.imageURL)
	}
	return l.content
}
