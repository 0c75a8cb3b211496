package outline

import (
	"reflect"
	"testing"
)

func TestRestoreUnsavedEdits(t *testing.T) {
	d := buildDoc(t, "# A", "x")
	snap := d.Snapshot()

	if _, err := d.InsertAt(2, "y"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.SetContent(1, "changed"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.SetContent(0, "plain"); err != nil {
		t.Fatal(err)
	}

	var restored bool
	d.Subscribe(func(e Event) { restored = restored || e.Type == EventRestored })
	d.Restore(snap)

	if got := d.Markdown(); got != "# A\nx" {
		t.Fatalf("markdown: %q", got)
	}
	for i, st := range snap.Lines {
		if d.Line(i).ID() != st.ID {
			t.Fatalf("line %d: handle %d, want %d", i, d.Line(i).ID(), st.ID)
		}
	}
	if d.Line(1).CategoryRef() != d.Line(0).ID() {
		t.Fatalf("x should belong to A again")
	}
	if !restored {
		t.Fatalf("no restore event")
	}
	if !reflect.DeepEqual(d.Snapshot(), snap) {
		t.Fatalf("snapshot after restore differs:\n got %+v\nwant %+v", d.Snapshot(), snap)
	}
	mustValidate(t, d)
}

func TestRestoreReclaimsPendingDeletion(t *testing.T) {
	d := loadDoc(t, "# A", "x")
	snap := d.Snapshot()
	contentX := d.Line(1).PersistedContentID()

	if _, err := d.RemoveAt(1); err != nil {
		t.Fatal(err)
	}
	if len(d.PendingDeletions()) != 1 {
		t.Fatalf("removal should be queued")
	}
	d.Restore(snap)

	if p := d.PendingDeletions(); len(p) != 0 {
		t.Fatalf("restored line must cancel its deletion: %+v", p)
	}
	x := d.Line(1)
	if x.PersistedContentID() != contentX {
		t.Fatalf("content id: got %d want %d", x.PersistedContentID(), contentX)
	}
	if !x.Dirty() {
		t.Fatalf("reclaimed line should be rewritten on the next save")
	}
	mustValidate(t, d)
}

func TestRestoreAfterDeletionWasSaved(t *testing.T) {
	d := loadDoc(t, "# A", "x")
	snap := d.Snapshot()

	if _, err := d.RemoveAt(0); err != nil {
		t.Fatal(err)
	}
	d.ApplyCommit(Commit{Deleted: d.PendingDeletions()})
	d.Restore(snap)

	a := d.Line(0)
	if a.Content() != "# A" || a.Persisted() {
		t.Fatalf("A should come back as a new heading: %+v", a)
	}
	if d.Line(1).CategoryRef() != a.ID() {
		t.Fatalf("x should belong to A again")
	}
	mustValidate(t, d)
}

func TestRestoreQueuesLinesMissingFromSnapshot(t *testing.T) {
	d := loadDoc(t, "x")
	snap := d.Snapshot()

	y, err := d.InsertAt(1, "y")
	if err != nil {
		t.Fatal(err)
	}
	d.ApplyCommit(Commit{Lines: []SavedLine{
		{Line: y.ID(), ContentID: 77, Saved: Saved{Content: "y", Order: 2, CategoryID: testRoot}},
	}})
	d.Restore(snap)

	if d.Len() != 1 {
		t.Fatalf("len: %d", d.Len())
	}
	want := []Deletion{{Kind: DeleteContent, ID: 77, Line: y.ID()}}
	if got := d.PendingDeletions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("pending: got %+v want %+v", got, want)
	}
}

func TestRestoreKindChangeAfterSave(t *testing.T) {
	d := loadDoc(t, "# A", "x")
	snap := d.Snapshot()
	x := d.Line(1)

	if _, err := d.SetContent(1, "## X"); err != nil {
		t.Fatal(err)
	}
	// the save drops x's content row and creates a category for it
	d.ApplyCommit(Commit{
		Lines:   []SavedLine{{Line: x.ID(), CategoryID: 42, Saved: Saved{Content: "## X", Order: 2, ParentID: 10}}},
		Deleted: d.PendingDeletions(),
	})
	d.Restore(snap)

	if x.Kind() != KindContent || x.PersistedCategoryID() != 0 {
		t.Fatalf("x should be content again: %+v", x)
	}
	p := d.PendingDeletions()
	if len(p) != 1 || p[0].Kind != DeleteCategory || p[0].ID != 42 {
		t.Fatalf("category row should be queued: %+v", p)
	}
	mustValidate(t, d)
}

func TestSnapshotContents(t *testing.T) {
	d := buildDoc(t, "# A", "x")
	s := d.Snapshot()
	if s.Len() != 2 || !reflect.DeepEqual(s.Contents(), []string{"# A", "x"}) {
		t.Fatalf("snapshot: %+v", s)
	}
	// empty snapshots are ignored
	d.Restore(Snapshot{})
	if d.Len() != 2 {
		t.Fatalf("empty restore changed the document")
	}
}
