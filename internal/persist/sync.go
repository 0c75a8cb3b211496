package persist

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"noteline/internal/model"
	"noteline/internal/outline"
)

// Result summarizes one save.
type Result struct {
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Renumbered int           `json:"renumbered"`
	Deleted    int           `json:"deleted"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Writes is the number of row writes the save issued.
func (r Result) Writes() int { return r.Inserted + r.Updated + r.Renumbered + r.Deleted }

// Syncer saves documents to and loads them from a Repository. It holds no
// per-document state; callers serialize access to each document.
type Syncer struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func New(repo Repository, log zerolog.Logger) *Syncer {
	return &Syncer{repo: repo, log: log.With().Str("component", "persist").Logger(), now: time.Now}
}

// Save writes the lines that changed since the last save, the display orders
// that moved, and the queued deletions, all in one transaction. When nothing
// changed no transaction is opened.
func (s *Syncer) Save(ctx context.Context, doc *outline.Document) (Result, error) {
	return s.save(ctx, doc, false)
}

// ForceSave rewrites every line regardless of its saved state.
func (s *Syncer) ForceSave(ctx context.Context, doc *outline.Document) (Result, error) {
	return s.save(ctx, doc, true)
}

func (s *Syncer) save(ctx context.Context, doc *outline.Document, force bool) (Result, error) {
	op := "save"
	if force {
		op = "force save"
	}
	start := s.now()
	if doc.RootCategoryID() == 0 {
		id, err := s.repo.EnsureRootCategory(ctx, doc.SubjectID())
		if err != nil {
			return Result{}, wrap(op, doc.SubjectID(), err)
		}
		doc.SetRootCategoryID(id)
	}

	p := buildPlan(doc, force)
	if p.empty() {
		return Result{Skipped: true}, nil
	}

	var x *executor
	err := s.repo.WithTx(ctx, func(tx Tx) error {
		// Repositories may run fn again after a transient failure.
		x = &executor{doc: doc, tx: tx, staged: map[outline.LineID]int64{}}
		return x.run(ctx, p)
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("subject", doc.SubjectID()).Str("op", op).Msg("save rolled back")
		return Result{}, wrap(op, doc.SubjectID(), err)
	}
	x.commit.Deleted = p.deletions
	doc.ApplyCommit(x.commit)

	res := x.res
	res.Duration = s.now().Sub(start)
	s.log.Debug().
		Int64("subject", doc.SubjectID()).
		Str("op", op).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("renumbered", res.Renumbered).
		Int("deleted", res.Deleted).
		Dur("took", res.Duration).
		Msg("saved")
	return res, nil
}

// executor applies a plan inside one transaction. Ids of rows inserted here
// live only in staged until the transaction commits.
type executor struct {
	doc    *outline.Document
	tx     Tx
	staged map[outline.LineID]int64
	res    Result
	commit outline.Commit
}

func (x *executor) run(ctx context.Context, p plan) error {
	for _, w := range p.headings {
		if err := x.writeHeading(ctx, w); err != nil {
			return err
		}
	}
	for _, w := range p.contents {
		if err := x.writeContent(ctx, w); err != nil {
			return err
		}
	}
	for _, d := range p.deletions {
		if d.Kind != outline.DeleteContent {
			continue
		}
		if err := x.tx.DeleteContent(ctx, d.ID); err != nil {
			return err
		}
		x.res.Deleted++
	}
	for _, d := range p.deletions {
		if d.Kind != outline.DeleteCategory {
			continue
		}
		if err := x.tx.ReassignContent(ctx, d.ID, x.fallbackID(d.Fallback)); err != nil {
			return err
		}
		if err := x.tx.DeleteCategory(ctx, d.ID); err != nil {
			return err
		}
		x.res.Deleted++
	}
	return nil
}

// categoryID resolves the heading ref for the line at index, including
// headings inserted earlier in this transaction.
func (x *executor) categoryID(ref outline.LineID, index int) int64 {
	if ref == outline.RootRef {
		return x.doc.RootCategoryID()
	}
	if id, ok := x.staged[ref]; ok {
		return id
	}
	if id, ok := knownCategoryID(x.doc, ref); ok {
		return id
	}
	return x.doc.FindCurrentCategoryID(index)
}

// fallbackID resolves the heading that inherits a deleted category's rows.
// Headings that no longer exist fall back to the root category.
func (x *executor) fallbackID(ref outline.LineID) int64 {
	if id, ok := x.staged[ref]; ok {
		return id
	}
	if id, ok := knownCategoryID(x.doc, ref); ok {
		return id
	}
	return x.doc.RootCategoryID()
}

func (x *executor) writeHeading(ctx context.Context, w write) error {
	l := w.line
	var parentID int64
	if w.owner != outline.RootRef {
		parentID = x.categoryID(w.owner, w.index)
	}
	if parentID == x.doc.RootCategoryID() {
		parentID = 0
	}
	id := l.PersistedCategoryID()
	saved, _ := l.Saved()
	switch w.kind {
	case writeInsert, writeUpdate:
		c := model.Category{
			ID:           id,
			SubjectID:    x.doc.SubjectID(),
			Title:        l.Title(),
			Level:        l.Level(),
			ParentID:     parentRef(parentID),
			DisplayOrder: w.order,
		}
		if w.kind == writeInsert {
			newID, err := x.tx.InsertCategory(ctx, c)
			if err != nil {
				return err
			}
			id = newID
			x.staged[l.ID()] = id
			x.res.Inserted++
		} else {
			if err := x.tx.UpdateCategory(ctx, c); err != nil {
				return err
			}
			x.res.Updated++
		}
		saved = outline.Saved{Content: l.Content(), ParentID: parentID}
	case writeRenumber:
		if err := x.tx.RenumberCategory(ctx, id, w.order); err != nil {
			return err
		}
		x.res.Renumbered++
	}
	saved.Order = w.order
	x.commit.Lines = append(x.commit.Lines, outline.SavedLine{Line: l.ID(), CategoryID: id, Saved: saved})
	return nil
}

func (x *executor) writeContent(ctx context.Context, w write) error {
	l := w.line
	categoryID := x.categoryID(w.owner, w.index)
	id := l.PersistedContentID()
	saved, _ := l.Saved()
	switch w.kind {
	case writeInsert, writeUpdate:
		row := model.ContentRow{
			ID:           id,
			SubjectID:    x.doc.SubjectID(),
			Content:      l.Content(),
			ContentType:  model.ContentTypeText,
			CategoryID:   categoryID,
			DisplayOrder: w.order,
		}
		if l.Kind() == outline.KindImage {
			row.ContentType = model.ContentTypeImage
			row.ImageURL = model.StringPtr(l.ImageURL())
		}
		if w.kind == writeInsert {
			newID, err := x.tx.InsertContent(ctx, row)
			if err != nil {
				return err
			}
			id = newID
			x.res.Inserted++
		} else {
			if err := x.tx.UpdateContent(ctx, row); err != nil {
				return err
			}
			x.res.Updated++
		}
		saved = outline.Saved{Content: l.Content(), ImageURL: l.ImageURL(), CategoryID: categoryID}
	case writeRenumber:
		if err := x.tx.RenumberContent(ctx, id, w.order); err != nil {
			return err
		}
		x.res.Renumbered++
	}
	saved.Order = w.order
	x.commit.Lines = append(x.commit.Lines, outline.SavedLine{Line: l.ID(), ContentID: id, Saved: saved})
	return nil
}

// parentRef maps the top level (0) to a NULL parent.
func parentRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return model.Int64Ptr(id)
}
