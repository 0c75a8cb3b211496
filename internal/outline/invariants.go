package outline

import "fmt"

// Validate checks the structural invariants: a non-empty document, strictly
// increasing display orders and unique handles. Kinds must match the text,
// content must belong to a heading whose section is open at its position, and
// storage handles must match the kind.
func (d *Document) Validate() error {
	var problems []string
	if len(d.lines) == 0 {
		problems = append(problems, "document is empty")
	}
	seen := map[LineID]int{}
	repaired := RepairCategories(d.lines)
	for i, l := range d.lines {
		if j, dup := seen[l.id]; dup {
			problems = append(problems, fmt.Sprintf("line %d shares handle %d with line %d", i, l.id, j))
		}
		seen[l.id] = i
		if i > 0 && l.order <= d.lines[i-1].order {
			problems = append(problems, fmt.Sprintf("line %d display order %d not above %d", i, l.order, d.lines[i-1].order))
		}
		if l.kind != KindImage {
			if k, lvl := Classify(l.content); k != l.kind || lvl != l.level {
				problems = append(problems, fmt.Sprintf("line %d classified %s/%d but text says %s/%d", i, l.kind, l.level, k, lvl))
			}
		}
		if l.kind == KindHeading {
			if l.contentID != 0 {
				problems = append(problems, fmt.Sprintf("heading %d holds content id %d", i, l.contentID))
			}
			if l.category != RootRef {
				problems = append(problems, fmt.Sprintf("heading %d has a category ref", i))
			}
			continue
		}
		if l.categoryID != 0 {
			problems = append(problems, fmt.Sprintf("content %d holds category id %d", i, l.categoryID))
		}
		if l.category == unassigned {
			problems = append(problems, fmt.Sprintf("content %d has no category", i))
			continue
		}
		if l.category != RootRef {
			j, ok := seen[l.category]
			if !ok || d.lines[j].kind != KindHeading {
				problems = append(problems, fmt.Sprintf("content %d references %d which is not a preceding heading", i, l.category))
				continue
			}
		}
		if want := repaired[l.id]; want != l.category {
			problems = append(problems, fmt.Sprintf("content %d references %d but the open section there is %d", i, l.category, want))
		}
	}
	if len(problems) > 0 {
		return &InvariantError{Problems: problems}
	}
	return nil
}

func (d *Document) check() {
	if !assertInvariants {
		return
	}
	if err := d.Validate(); err != nil {
		panic(err)
	}
}
