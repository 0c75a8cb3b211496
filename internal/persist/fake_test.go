package persist

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"noteline/internal/model"
)

var errBoom = errors.New("boom")

type fakeState struct {
	nextID     int64
	categories map[int64]model.Category
	contents   map[int64]model.ContentRow
}

func (s fakeState) clone() fakeState {
	return fakeState{nextID: s.nextID, categories: maps.Clone(s.categories), contents: maps.Clone(s.contents)}
}

// fakeRepo is an in-memory Repository with copy-on-write transactions and
// foreign key checks close to the SQLite schema.
type fakeRepo struct {
	st      fakeState
	txs     int
	commits int
	failOn  string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{st: fakeState{categories: map[int64]model.Category{}, contents: map[int64]model.ContentRow{}}}
}

func (r *fakeRepo) LoadSubject(_ context.Context, subjectID int64) (model.SubjectRows, error) {
	var out model.SubjectRows
	for _, c := range r.st.categories {
		if c.SubjectID != subjectID {
			continue
		}
		if c.Root {
			out.Root = c
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	for _, c := range r.st.contents {
		if c.SubjectID == subjectID {
			out.Contents = append(out.Contents, c)
		}
	}
	return out, nil
}

func (r *fakeRepo) EnsureRootCategory(_ context.Context, subjectID int64) (int64, error) {
	for id, c := range r.st.categories {
		if c.Root && c.SubjectID == subjectID {
			return id, nil
		}
	}
	r.st.nextID++
	id := r.st.nextID
	r.st.categories[id] = model.Category{ID: id, SubjectID: subjectID, Title: "Uncategorized", Root: true}
	return id, nil
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(Tx) error) error {
	r.txs++
	st := r.st.clone()
	if err := fn(&fakeTx{repo: r, st: &st}); err != nil {
		return err
	}
	r.st = st
	r.commits++
	return nil
}

func (r *fakeRepo) categoryByTitle(title string) (model.Category, bool) {
	for _, c := range r.st.categories {
		if c.Title == title && !c.Root {
			return c, true
		}
	}
	return model.Category{}, false
}

func (r *fakeRepo) contentByText(text string) (model.ContentRow, bool) {
	for _, c := range r.st.contents {
		if c.Content == text {
			return c, true
		}
	}
	return model.ContentRow{}, false
}

type fakeTx struct {
	repo *fakeRepo
	st   *fakeState
}

func (t *fakeTx) fail(op string) error {
	if t.repo.failOn == op {
		return fmt.Errorf("%s: %w", op, errBoom)
	}
	return nil
}

func (t *fakeTx) needCategory(id int64) error {
	if _, ok := t.st.categories[id]; !ok {
		return fmt.Errorf("foreign key: category %d missing", id)
	}
	return nil
}

func (t *fakeTx) InsertCategory(_ context.Context, c model.Category) (int64, error) {
	if err := t.fail("InsertCategory"); err != nil {
		return 0, err
	}
	if c.ParentID != nil {
		if err := t.needCategory(*c.ParentID); err != nil {
			return 0, err
		}
	}
	t.st.nextID++
	c.ID = t.st.nextID
	t.st.categories[c.ID] = c
	return c.ID, nil
}

func (t *fakeTx) UpdateCategory(_ context.Context, c model.Category) error {
	if err := t.fail("UpdateCategory"); err != nil {
		return err
	}
	if err := t.needCategory(c.ID); err != nil {
		return err
	}
	if c.ParentID != nil {
		if err := t.needCategory(*c.ParentID); err != nil {
			return err
		}
	}
	t.st.categories[c.ID] = c
	return nil
}

func (t *fakeTx) DeleteCategory(_ context.Context, id int64) error {
	if err := t.fail("DeleteCategory"); err != nil {
		return err
	}
	if err := t.needCategory(id); err != nil {
		return err
	}
	for _, c := range t.st.contents {
		if c.CategoryID == id {
			return fmt.Errorf("foreign key: content %d still in category %d", c.ID, id)
		}
	}
	for cid, c := range t.st.categories {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
			t.st.categories[cid] = c
		}
	}
	delete(t.st.categories, id)
	return nil
}

func (t *fakeTx) InsertContent(_ context.Context, c model.ContentRow) (int64, error) {
	if err := t.fail("InsertContent"); err != nil {
		return 0, err
	}
	if err := t.needCategory(c.CategoryID); err != nil {
		return 0, err
	}
	t.st.nextID++
	c.ID = t.st.nextID
	t.st.contents[c.ID] = c
	return c.ID, nil
}

func (t *fakeTx) UpdateContent(_ context.Context, c model.ContentRow) error {
	if err := t.fail("UpdateContent"); err != nil {
		return err
	}
	if _, ok := t.st.contents[c.ID]; !ok {
		return fmt.Errorf("content %d missing", c.ID)
	}
	if err := t.needCategory(c.CategoryID); err != nil {
		return err
	}
	t.st.contents[c.ID] = c
	return nil
}

func (t *fakeTx) DeleteContent(_ context.Context, id int64) error {
	if err := t.fail("DeleteContent"); err != nil {
		return err
	}
	if _, ok := t.st.contents[id]; !ok {
		return fmt.Errorf("content %d missing", id)
	}
	delete(t.st.contents, id)
	return nil
}

func (t *fakeTx) ReassignContent(_ context.Context, from, to int64) error {
	if err := t.fail("ReassignContent"); err != nil {
		return err
	}
	for id, c := range t.st.contents {
		if c.CategoryID != from {
			continue
		}
		if err := t.needCategory(to); err != nil {
			return err
		}
		c.CategoryID = to
		t.st.contents[id] = c
	}
	return nil
}

func (t *fakeTx) RenumberCategory(_ context.Context, id int64, order int) error {
	if err := t.fail("RenumberCategory"); err != nil {
		return err
	}
	c, ok := t.st.categories[id]
	if !ok {
		return fmt.Errorf("category %d missing", id)
	}
	c.DisplayOrder = order
	t.st.categories[id] = c
	return nil
}

func (t *fakeTx) RenumberContent(_ context.Context, id int64, order int) error {
	if err := t.fail("RenumberContent"); err != nil {
		return err
	}
	c, ok := t.st.contents[id]
	if !ok {
		return fmt.Errorf("content %d missing", id)
	}
	c.DisplayOrder = order
	t.st.contents[id] = c
	return nil
}
