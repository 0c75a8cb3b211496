package outline

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindContent Kind = iota
	KindHeading
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindImage:
		return "image"
	default:
		return "content"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "heading":
		*k = KindHeading
	case "image":
		*k = KindImage
	default:
		*k = KindContent
	}
	return nil
}

const MaxHeadingLevel = 6

// Exactly 1..6 '#' followed by whitespace and a non-blank title. A seventh '#'
// fails the whitespace match, so longer runs classify as content.
var headingRe = regexp.MustCompile(`^(#{1,6})[ \t]+(\S.*)$`)

// A heading marker with no title yet; still content.
var pendingHeadingRe = regexp.MustCompile(`^(#{1,6})[ \t]*$`)

// Classify derives a line's kind and heading level from its text.
// Image lines are never inferred from text.
func Classify(text string) (Kind, int) {
	m := headingRe.FindStringSubmatch(text)
	if m == nil {
		return KindContent, 0
	}
	return KindHeading, len(m[1])
}

// HeadingTitle returns the title part of a heading line, or "" for non-headings.
func HeadingTitle(text string) string {
	m := headingRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[2])
}

// HeadingText builds canonical heading text for a level and title.
func HeadingText(level int, title string) string {
	if level < 1 {
		level = 1
	}
	if level > MaxHeadingLevel {
		level = MaxHeadingLevel
	}
	return strings.Repeat("#", level) + " " + strings.TrimSpace(title)
}

type ListKind int

const (
	ListNone ListKind = iota
	ListBullet
	ListOrdered
)

// ListMarker describes list syntax at the start of a line. It only drives
// editor affordances and has no effect on hierarchy.
type ListMarker struct {
	Kind   ListKind
	Marker string // "- ", "* ", "+ " or "N. "
	Number int    // ordered lists only
	Body   string
}

var orderedRe = regexp.MustCompile(`^(\d{1,9})\. (.*)$`)

func ParseList(text string) ListMarker {
	for _, m := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(text, m) {
			return ListMarker{Kind: ListBullet, Marker: m, Body: text[len(m):]}
		}
	}
	if m := orderedRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return ListMarker{Kind: ListOrdered, Marker: m[1] + ". ", Number: n, Body: m[2]}
		}
	}
	return ListMarker{Kind: ListNone, Body: text}
}

// Next returns the marker a following line continues the list with.
// An empty body ends the list.
func (m ListMarker) Next() string {
	if strings.TrimSpace(m.Body) == "" {
		return ""
	}
	switch m.Kind {
	case ListBullet:
		return m.Marker
	case ListOrdered:
		return strconv.Itoa(m.Number+1) + ". "
	default:
		return ""
	}
}
