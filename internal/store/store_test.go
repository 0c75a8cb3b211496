package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"noteline/internal/model"
	"noteline/internal/persist"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", dbFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSubjects(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, err := s.CreateSubject(ctx, "Biology")
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	if _, err := s.CreateSubject(ctx, "Chemistry"); err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	if _, err := s.CreateSubject(ctx, "Biology"); err == nil {
		t.Fatalf("duplicate subject names must fail")
	}
	if _, err := s.CreateSubject(ctx, "  "); err == nil {
		t.Fatalf("empty name must fail")
	}

	subs, err := s.ListSubjects(ctx)
	if err != nil || len(subs) != 2 {
		t.Fatalf("ListSubjects: %v %+v", err, subs)
	}
	if got, err := s.FindSubject(ctx, "Biology"); err != nil || got.ID != a.ID {
		t.Fatalf("FindSubject by name: %+v %v", got, err)
	}
	if got, err := s.FindSubject(ctx, fmt.Sprint(a.ID)); err != nil || got.Name != "Biology" {
		t.Fatalf("FindSubject by id: %+v %v", got, err)
	}
	if _, err := s.FindSubject(ctx, "Physics"); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("want ErrSubjectNotFound, got %v", err)
	}

	rows, err := s.LoadSubject(ctx, a.ID)
	if err != nil {
		t.Fatalf("LoadSubject: %v", err)
	}
	if !rows.Root.Root || rows.Root.Title != RootCategoryTitle {
		t.Fatalf("subject should start with a root category: %+v", rows.Root)
	}
	if id, err := s.EnsureRootCategory(ctx, a.ID); err != nil || id != rows.Root.ID {
		t.Fatalf("EnsureRootCategory must be idempotent: %d %v", id, err)
	}

	if err := s.RenameSubject(ctx, a.ID, "Bio"); err != nil {
		t.Fatalf("RenameSubject: %v", err)
	}
	if err := s.DeleteSubject(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSubject: %v", err)
	}
	if err := s.DeleteSubject(ctx, a.ID); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sub, err := s.CreateSubject(ctx, "Notes")
	if err != nil {
		t.Fatal(err)
	}
	syncer := persist.New(s, zerolog.Nop())

	doc, err := syncer.Load(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, text := range []string{"# A", "x", "## B", "y", "# C", "z"} {
		if i == 0 {
			_, err = doc.SetContent(0, text)
		} else {
			_, err = doc.InsertAt(i, text)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := doc.InsertImage(6, "https://example.com/a.png", "diagram"); err != nil {
		t.Fatal(err)
	}
	if _, err := syncer.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res, err := syncer.Save(ctx, doc); err != nil || !res.Skipped {
		t.Fatalf("second save should write nothing: %+v %v", res, err)
	}

	got, err := syncer.Load(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Markdown() != doc.Markdown() {
		t.Fatalf("round trip:\n got %q\nwant %q", got.Markdown(), doc.Markdown())
	}
	if p, _ := got.FindParentForHeading(2); p == nil || p.Title() != "A" {
		t.Fatalf("B should nest under A")
	}

	// Removing C moves z to A and drops C's row.
	if _, err := got.RemoveAt(4); err != nil {
		t.Fatal(err)
	}
	if _, err := got.SetContent(2, "B"); err != nil {
		t.Fatal(err)
	}
	if _, err := syncer.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rows, err := s.LoadSubject(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Categories) != 1 || rows.Categories[0].Title != "A" {
		t.Fatalf("only A should remain: %+v", rows.Categories)
	}
	for _, r := range rows.Contents {
		if r.CategoryID != rows.Categories[0].ID {
			t.Fatalf("content %q should belong to A, has %d", r.Content, r.CategoryID)
		}
	}
	again, err := syncer.Load(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if want := "# A\nx\nB\ny\nz\n![diagram](https://example.com/a.png)"; again.Markdown() != want {
		t.Fatalf("after edits: got %q want %q", again.Markdown(), want)
	}
	if err := again.Validate(); err != nil {
		t.Fatal(err)
	}
	report, err := s.Doctor(ctx)
	if err != nil || len(report.Issues) != 0 {
		t.Fatalf("doctor: %+v %v", report, err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sub, err := s.CreateSubject(ctx, "FK")
	if err != nil {
		t.Fatal(err)
	}
	root, _ := s.EnsureRootCategory(ctx, sub.ID)

	var catID int64
	err = s.WithTx(ctx, func(tx persist.Tx) error {
		var err error
		catID, err = tx.InsertCategory(ctx, model.Category{SubjectID: sub.ID, Title: "H", Level: 1, ParentID: model.Int64Ptr(root), DisplayOrder: 1})
		if err != nil {
			return err
		}
		_, err = tx.InsertContent(ctx, model.ContentRow{SubjectID: sub.ID, Content: "c", ContentType: model.ContentTypeText, CategoryID: catID, DisplayOrder: 2})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = s.WithTx(ctx, func(tx persist.Tx) error { return tx.DeleteCategory(ctx, catID) })
	if err == nil {
		t.Fatalf("deleting a category that still holds content must fail")
	}
	err = s.WithTx(ctx, func(tx persist.Tx) error {
		return tx.UpdateContent(ctx, model.ContentRow{ID: 999, ContentType: model.ContentTypeText, CategoryID: root})
	})
	if !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("want ErrRowNotFound, got %v", err)
	}

	err = s.WithTx(ctx, func(tx persist.Tx) error {
		if err := tx.ReassignContent(ctx, catID, root); err != nil {
			return err
		}
		return tx.DeleteCategory(ctx, catID)
	})
	if err != nil {
		t.Fatalf("reassign + delete: %v", err)
	}
	rows, _ := s.LoadSubject(ctx, sub.ID)
	if len(rows.Categories) != 0 || len(rows.Contents) != 1 || rows.Contents[0].CategoryID != root {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sub, _ := s.CreateSubject(ctx, "Rollback")
	root, _ := s.EnsureRootCategory(ctx, sub.ID)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx persist.Tx) error {
		if _, err := tx.InsertContent(ctx, model.ContentRow{SubjectID: sub.ID, Content: "gone", ContentType: model.ContentTypeText, CategoryID: root, DisplayOrder: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	rows, _ := s.LoadSubject(ctx, sub.ID)
	if len(rows.Contents) != 0 {
		t.Fatalf("rolled back insert is visible: %+v", rows.Contents)
	}
}

func TestWorkspaceIDStable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), dbFileName)
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.WorkspaceID(ctx)
	if err != nil || id == "" {
		t.Fatalf("WorkspaceID: %q %v", id, err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	again, _ := s.WorkspaceID(ctx)
	if again != id {
		t.Fatalf("workspace id changed: %q -> %q", id, again)
	}
}

func TestDiscoverDir(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, dirName)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(ws, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok := DiscoverDir(nested)
	if !ok || got != ws {
		t.Fatalf("DiscoverDir: %q %v", got, ok)
	}
}

type codedErr int

func (e codedErr) Error() string { return fmt.Sprintf("sqlite error %d", int(e)) }
func (e codedErr) Code() int     { return int(e) }

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("database is locked"), want: true},
		{err: fmt.Errorf("exec: %w", codedErr(sqliteBusy)), want: true},
		{err: codedErr(sqliteLocked | 1<<8), want: true},
		{err: codedErr(19), want: false},
		{err: errors.New("constraint failed"), want: false},
	}
	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.want {
			t.Fatalf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDoctorFindsDamage(t *testing.T) {
	rows := model.SubjectRows{
		Root: model.Category{ID: 1, Root: true},
		Categories: []model.Category{
			{ID: 2, Title: "A", Level: 1, ParentID: model.Int64Ptr(1), DisplayOrder: 1},
			{ID: 3, Title: "B", Level: 1, ParentID: model.Int64Ptr(2), DisplayOrder: 2},
			{ID: 4, Title: "Lost", Level: 2, ParentID: model.Int64Ptr(42), DisplayOrder: 3},
		},
		Contents: []model.ContentRow{
			{ID: 10, Content: "x", CategoryID: 77, DisplayOrder: 3},
			{ID: 11, ContentType: model.ContentTypeImage, CategoryID: 2, DisplayOrder: 4},
		},
	}
	codes := map[string]bool{}
	for _, it := range checkSubject(9, rows) {
		codes[it.Code] = true
	}
	for _, want := range []string{"parent_level", "orphan_category", "orphan_content", "image_without_url", "duplicate_order"} {
		if !codes[want] {
			t.Fatalf("missing %s in %v", want, codes)
		}
	}
	if (DoctorReport{Issues: checkSubject(9, rows)}).HasErrors() != true {
		t.Fatalf("orphan content is an error")
	}
}

func TestBackupAndImport(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sub, _ := s.CreateSubject(ctx, "Source")
	syncer := persist.New(s, zerolog.Nop())
	doc, err := syncer.Load(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range []string{"intro", "# A", "x", "## B", "y"} {
		if i == 0 {
			_, err = doc.SetContent(0, text)
		} else {
			_, err = doc.InsertAt(i, text)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := syncer.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "copy.sqlite")
	if err := s.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := s.Backup(ctx, dest); err == nil {
		t.Fatalf("backup over an existing file must fail")
	}
	copyStore, err := Open(ctx, dest)
	if err != nil {
		t.Fatal(err)
	}
	defer copyStore.Close()
	fromCopy, err := persist.New(copyStore, zerolog.Nop()).Load(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fromCopy.Markdown() != doc.Markdown() {
		t.Fatalf("backup differs: %q", fromCopy.Markdown())
	}

	exp, err := s.ExportSubject(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	imported, err := s.ImportSubject(ctx, "Copy", exp)
	if err != nil {
		t.Fatalf("ImportSubject: %v", err)
	}
	if imported.ID == sub.ID {
		t.Fatalf("import must create a new subject")
	}
	got, err := syncer.Load(ctx, imported.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Markdown() != doc.Markdown() {
		t.Fatalf("import differs:\n got %q\nwant %q", got.Markdown(), doc.Markdown())
	}
}

func TestTopLevelHeadingsHaveNullParent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sub, _ := s.CreateSubject(ctx, "Parents")
	syncer := persist.New(s, zerolog.Nop())
	doc, err := syncer.Load(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range []string{"# A", "x", "## B", "y", "# C", "z"} {
		if i == 0 {
			_, err = doc.SetContent(0, text)
		} else {
			_, err = doc.InsertAt(i, text)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := syncer.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	parents := func(subjectID int64) map[string]sql.NullInt64 {
		t.Helper()
		rows, err := s.db.QueryContext(ctx, `SELECT title, parent_category_id FROM category WHERE subject_id = ? AND is_root = 0`, subjectID)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()
		out := map[string]sql.NullInt64{}
		for rows.Next() {
			var title string
			var parent sql.NullInt64
			if err := rows.Scan(&title, &parent); err != nil {
				t.Fatal(err)
			}
			out[title] = parent
		}
		if err := rows.Err(); err != nil {
			t.Fatal(err)
		}
		return out
	}
	check := func(subjectID int64) {
		t.Helper()
		var aID int64
		if err := s.db.QueryRowContext(ctx, `SELECT category_id FROM category WHERE subject_id = ? AND title = 'A'`, subjectID).Scan(&aID); err != nil {
			t.Fatal(err)
		}
		got := parents(subjectID)
		if got["A"].Valid || got["C"].Valid {
			t.Fatalf("top-level headings must have a NULL parent: %+v", got)
		}
		if !got["B"].Valid || got["B"].Int64 != aID {
			t.Fatalf("B parent = %+v, want %d", got["B"], aID)
		}
	}
	check(sub.ID)

	exp, err := s.ExportSubject(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	imported, err := s.ImportSubject(ctx, "Parents copy", exp)
	if err != nil {
		t.Fatal(err)
	}
	check(imported.ID)

	report, err := s.Doctor(ctx)
	if err != nil || len(report.Issues) != 0 {
		t.Fatalf("doctor: %+v %v", report, err)
	}
}

func TestWithTxRetriesBusy(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), dbFileName),
		WithRetry(RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	sub, _ := s.CreateSubject(ctx, "Busy")
	root, _ := s.EnsureRootCategory(ctx, sub.ID)

	attempts := 0
	err = s.WithTx(ctx, func(tx persist.Tx) error {
		attempts++
		if _, err := tx.InsertContent(ctx, model.ContentRow{SubjectID: sub.ID, Content: fmt.Sprint("attempt ", attempts), ContentType: model.ContentTypeText, CategoryID: root, DisplayOrder: 1}); err != nil {
			return err
		}
		if attempts == 1 {
			return fmt.Errorf("insert: %w", codedErr(sqliteBusy))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	rows, _ := s.LoadSubject(ctx, sub.ID)
	if len(rows.Contents) != 1 || rows.Contents[0].Content != "attempt 2" {
		t.Fatalf("want only the committed retry, got %+v", rows.Contents)
	}

	attempts = 0
	err = s.WithTx(ctx, func(tx persist.Tx) error {
		attempts++
		return codedErr(19)
	})
	if err == nil || attempts != 1 {
		t.Fatalf("constraint errors are not retried: attempts=%d err=%v", attempts, err)
	}
}
