package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"noteline/internal/outline"
	"noteline/internal/persist"
	"noteline/internal/store"
)

// flakyRepo fails transactions while fail is set and counts the ones it runs.
type flakyRepo struct {
	*store.Store
	fail atomic.Bool
	txs  atomic.Int32
}

var errInjected = errors.New("injected failure")

func (r *flakyRepo) WithTx(ctx context.Context, fn func(persist.Tx) error) error {
	if r.fail.Load() {
		return errInjected
	}
	r.txs.Add(1)
	return r.Store.WithTx(ctx, fn)
}

func newRepo(t *testing.T) (*flakyRepo, int64) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "noteline.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	sub, err := st.CreateSubject(ctx, "Test")
	require.NoError(t, err)
	return &flakyRepo{Store: st}, sub.ID
}

func contents(s *Session) []string {
	var out []string
	for _, l := range s.Lines() {
		out = append(out, l.Content)
	}
	return out
}

func fill(t *testing.T, s *Session, lines ...string) {
	t.Helper()
	_, err := s.SetContent(0, lines[0])
	require.NoError(t, err)
	for i, text := range lines[1:] {
		_, err := s.Insert(i+1, text)
		require.NoError(t, err)
	}
}

func TestUndoRedoContentEdit(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "# A", "first", "second")
	_, err = s.SetContent(2, "second, edited")
	require.NoError(t, err)

	require.True(t, s.Undo())
	require.Equal(t, "second", s.Lines()[2].Content)
	require.True(t, s.CanRedo())

	require.True(t, s.Redo())
	require.Equal(t, "second, edited", s.Lines()[2].Content)
	require.False(t, s.Redo())

	for s.Undo() {
	}
	require.Equal(t, []string{""}, contents(s))
	require.NoError(t, s.Validate())
}

func TestUnchangedTextIsNotAnUndoStep(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "x")
	_, err = s.SetContent(0, "x")
	require.NoError(t, err)
	require.NoError(t, s.Move(0, 0, true))

	require.True(t, s.Undo())
	require.False(t, s.CanUndo())
}

func TestCloseForceSaves(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "# A", "x", "## B", "y")
	_, err = s.InsertImage(4, "https://example.com/i.png", "pic")
	require.NoError(t, err)
	require.True(t, s.Pending())
	require.NoError(t, s.Close(ctx))

	_, err = s.Insert(0, "late")
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, s.Undo())

	again, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"# A", "x", "## B", "y", "pic"}, contents(again))
	lines := again.Lines()
	require.Equal(t, outline.KindImage, lines[4].Kind)
	require.Equal(t, lines[2].ID, lines[4].Category)
	for _, l := range lines {
		require.False(t, l.Dirty, "line %d", l.Index)
	}
}

func TestSaveFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	var notified []error
	s, err := Open(ctx, repo, subject, Options{Notify: func(err error) { notified = append(notified, err) }})
	require.NoError(t, err)

	fill(t, s, "# A", "x")
	repo.fail.Store(true)
	_, err = s.Save(ctx)
	require.ErrorIs(t, err, persist.ErrPersistence)
	require.Len(t, notified, 1)

	// editing continues and the next save picks everything up
	_, err = s.Insert(2, "y")
	require.NoError(t, err)
	repo.fail.Store(false)
	res, err := s.Save(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, res.Inserted)

	res, err = s.Save(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped)
}

func TestUndoAfterSaveDeletesRows(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "# A", "x")
	_, err = s.Insert(2, "## B")
	require.NoError(t, err)
	_, err = s.Save(ctx)
	require.NoError(t, err)

	require.True(t, s.Undo())
	require.NoError(t, s.Close(ctx))

	rows, err := repo.LoadSubject(ctx, subject)
	require.NoError(t, err)
	require.Len(t, rows.Categories, 1)
	require.Equal(t, "A", rows.Categories[0].Title)
	require.Len(t, rows.Contents, 1)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	var got []outline.EventType
	cancel := s.Subscribe(func(e outline.Event) { got = append(got, e.Type) })
	_, err = s.Insert(1, "# H")
	require.NoError(t, err)
	require.True(t, s.Undo())
	cancel()
	_, err = s.Insert(0, "ignored")
	require.NoError(t, err)

	require.Equal(t, []outline.EventType{outline.EventInserted, outline.EventRestored}, got)
}

func TestReadOnlyNeverWrites(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)
	fill(t, s, "# A", "x")
	require.NoError(t, s.Close(ctx))
	before := repo.txs.Load()

	ro, err := Open(ctx, repo, subject, Options{ReadOnly: true})
	require.NoError(t, err)
	require.Equal(t, []string{"# A", "x"}, contents(ro))

	_, err = ro.Insert(0, "nope")
	require.ErrorIs(t, err, ErrReadOnly)
	_, err = ro.SetContent(1, "nope")
	require.ErrorIs(t, err, ErrReadOnly)
	_, err = ro.ForceSave(ctx)
	require.ErrorIs(t, err, ErrReadOnly)
	require.False(t, ro.Undo())
	require.NoError(t, ro.Close(ctx))

	require.Equal(t, before, repo.txs.Load())
}

func categoryParents(t *testing.T, repo *flakyRepo, subject int64) map[string]*int64 {
	t.Helper()
	rows, err := repo.LoadSubject(context.Background(), subject)
	require.NoError(t, err)
	out := map[string]*int64{}
	for _, c := range rows.Categories {
		if !c.Root {
			out[c.Title] = c.ParentID
		}
	}
	return out
}

func categoryIDs(rows []Line) map[string]int64 {
	out := map[string]int64{}
	for _, l := range rows {
		if l.Kind == outline.KindHeading {
			out[outline.HeadingTitle(l.Content)] = l.CategoryID
		}
	}
	return out
}

func TestEmptyLineKeepsSectionsOpen(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "# A", "## B", "# C", "")
	_, err = s.Remove(2)
	require.NoError(t, err)
	_, err = s.Insert(3, "### D")
	require.NoError(t, err)
	require.Equal(t, []string{"# A", "## B", "", "### D"}, contents(s))
	require.NoError(t, s.Validate())
	require.NoError(t, s.Close(ctx))

	ids := categoryIDs(s.Lines())
	parents := categoryParents(t, repo, subject)
	require.Nil(t, parents["A"])
	require.NotNil(t, parents["D"])
	require.Equal(t, ids["B"], *parents["D"])

	again, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"# A", "## B", "### D"}, contents(again))
	res, err := again.Save(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped, "%+v", res)
}

func TestReopenedDocumentSavesNothing(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)
	fill(t, s, "", "# A", "x", "## B", "y", "# C", "z")
	require.NoError(t, s.Close(ctx))

	for range 2 {
		again, err := Open(ctx, repo, subject, Options{})
		require.NoError(t, err)
		require.Equal(t, []string{"# A", "x", "## B", "y", "# C", "z"}, contents(again))
		res, err := again.Save(ctx)
		require.NoError(t, err)
		require.True(t, res.Skipped, "%+v", res)
		require.Zero(t, res.Renumbered)
		require.NoError(t, again.Close(ctx))
	}
}

func TestHeadingTextIsCanonical(t *testing.T) {
	ctx := context.Background()
	repo, subject := newRepo(t)
	s, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)

	fill(t, s, "#   A", "x", "##\tB  ")
	require.Equal(t, []string{"# A", "x", "## B"}, contents(s))

	_, err = s.SetContent(0, "#  A")
	require.NoError(t, err)
	require.True(t, s.Undo())
	require.Equal(t, []string{"# A", "x"}, contents(s), "the no-op edit left no undo step")
	require.True(t, s.Redo())
	require.NoError(t, s.Close(ctx))

	again, err := Open(ctx, repo, subject, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"# A", "x", "## B"}, contents(again))
	res, err := again.Save(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped, "%+v", res)
}
