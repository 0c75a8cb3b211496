package persist

import (
	"context"
	"sort"

	"noteline/internal/model"
	"noteline/internal/outline"
)

// Load reads a subject and flattens its category tree into document order.
//
// Categories are indexed by id, each one's children (subcategories and
// content rows) are sorted by display order, and the tree is walked
// depth-first from the root category. Categories whose parent is missing or
// unreachable hang off the root.
func (s *Syncer) Load(ctx context.Context, subjectID int64) (*outline.Document, error) {
	rows, err := s.repo.LoadSubject(ctx, subjectID)
	if err != nil {
		return nil, wrap("load", subjectID, err)
	}
	rootID := rows.Root.ID
	if rootID == 0 {
		rootID, err = s.repo.EnsureRootCategory(ctx, subjectID)
		if err != nil {
			return nil, wrap("load", subjectID, err)
		}
	}
	loaded := Flatten(rootID, rows.Categories, rows.Contents)
	s.log.Debug().Int64("subject", subjectID).Int("lines", len(loaded)).Msg("loaded")
	return outline.FromLoaded(subjectID, rootID, loaded), nil
}

type treeEntry struct {
	order    int
	id       int64
	category *model.Category
	content  *model.ContentRow
}

// Flatten orders stored rows the way the document shows them.
func Flatten(rootID int64, categories []model.Category, contents []model.ContentRow) []outline.Loaded {
	byID := make(map[int64]*model.Category, len(categories))
	for i := range categories {
		c := &categories[i]
		if c.ID == rootID || c.Root {
			continue
		}
		byID[c.ID] = c
	}
	children := map[int64][]treeEntry{}
	for _, c := range byID {
		parent := rootID
		if c.ParentID != nil {
			if _, ok := byID[*c.ParentID]; ok && *c.ParentID != c.ID {
				parent = *c.ParentID
			}
		}
		children[parent] = append(children[parent], treeEntry{order: c.DisplayOrder, id: c.ID, category: c})
	}
	for i := range contents {
		r := &contents[i]
		owner := rootID
		if _, ok := byID[r.CategoryID]; ok {
			owner = r.CategoryID
		}
		children[owner] = append(children[owner], treeEntry{order: r.DisplayOrder, id: r.ID, content: r})
	}
	for k := range children {
		xs := children[k]
		sort.SliceStable(xs, func(i, j int) bool {
			if xs[i].order != xs[j].order {
				return xs[i].order < xs[j].order
			}
			// headings open their section before content at the same order
			if (xs[i].category != nil) != (xs[j].category != nil) {
				return xs[i].category != nil
			}
			return xs[i].id < xs[j].id
		})
	}

	out := make([]outline.Loaded, 0, len(byID)+len(contents))
	visited := map[int64]bool{}
	var walk func(id int64)
	walk = func(id int64) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, e := range children[id] {
			if e.content != nil {
				out = append(out, loadedContent(e.content))
				continue
			}
			if visited[e.category.ID] {
				continue
			}
			out = append(out, loadedCategory(e.category))
			walk(e.category.ID)
		}
	}
	walk(rootID)

	// Parent cycles never reach the root; attach what is left to it.
	var rest []*model.Category
	for id, c := range byID {
		if !visited[id] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].DisplayOrder != rest[j].DisplayOrder {
			return rest[i].DisplayOrder < rest[j].DisplayOrder
		}
		return rest[i].ID < rest[j].ID
	})
	for _, c := range rest {
		if visited[c.ID] {
			continue
		}
		out = append(out, loadedCategory(c))
		walk(c.ID)
	}
	return out
}

func loadedCategory(c *model.Category) outline.Loaded {
	var parent int64
	if c.ParentID != nil {
		parent = *c.ParentID
	}
	return outline.Loaded{
		Content:    outline.HeadingText(c.Level, c.Title),
		Kind:       outline.KindHeading,
		Order:      c.DisplayOrder,
		CategoryID: c.ID,
		ParentID:   parent,
	}
}

func loadedContent(r *model.ContentRow) outline.Loaded {
	ld := outline.Loaded{
		Content:          r.Content,
		Kind:             outline.KindContent,
		Order:            r.DisplayOrder,
		ContentID:        r.ID,
		StoredCategoryID: r.CategoryID,
	}
	if r.ContentType == model.ContentTypeImage {
		ld.Kind = outline.KindImage
		if r.ImageURL != nil {
			ld.ImageURL = *r.ImageURL
		}
	}
	return ld
}
