package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"noteline/internal/model"
)

// Backup writes a consistent copy of the database to dest. dest must not
// exist yet.
func (s *Store) Backup(ctx context.Context, dest string) error {
	dest = filepath.Clean(strings.TrimSpace(dest))
	if dest == "" || dest == "." {
		return errors.New("backup: missing destination")
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup: %s already exists", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return s.do(ctx, "backup", func() error {
		_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest)
		return err
	})
}

// SubjectExport is the portable form of one subject.
type SubjectExport struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Subject    model.Subject     `json:"subject"`
	Rows       model.SubjectRows `json:"rows"`
}

const exportVersion = 1

func (s *Store) ExportSubject(ctx context.Context, id int64) (SubjectExport, error) {
	sub, err := s.FindSubject(ctx, fmt.Sprint(id))
	if err != nil {
		return SubjectExport{}, err
	}
	rows, err := s.LoadSubject(ctx, id)
	if err != nil {
		return SubjectExport{}, err
	}
	return SubjectExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC().Truncate(time.Millisecond),
		Subject:    sub,
		Rows:       rows,
	}, nil
}

// ImportSubject creates a new subject named name from an export. Row ids are
// reassigned; parent links and content owners follow the new ids. Rows that
// point at unknown categories are attached to the root.
func (s *Store) ImportSubject(ctx context.Context, name string, exp SubjectExport) (model.Subject, error) {
	if exp.Version != exportVersion {
		return model.Subject{}, fmt.Errorf("import: unsupported export version %d", exp.Version)
	}
	if strings.TrimSpace(name) == "" {
		name = exp.Subject.Name
	}
	sub, err := s.CreateSubject(ctx, name)
	if err != nil {
		return model.Subject{}, err
	}
	err = s.do(ctx, "import subject", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		root, err := ensureRoot(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		t := sqlTx{tx: tx}

		ids := map[int64]int64{exp.Rows.Root.ID: root}
		for _, c := range exp.Rows.Categories {
			c.SubjectID = sub.ID
			c.Root = false
			c.ParentID = nil
			newID, err := t.InsertCategory(ctx, c)
			if err != nil {
				return err
			}
			ids[c.ID] = newID
		}
		for _, c := range exp.Rows.Categories {
			if c.ParentID == nil {
				continue
			}
			p, ok := ids[*c.ParentID]
			if !ok || p == root {
				continue
			}
			c.ID = ids[c.ID]
			c.ParentID = model.Int64Ptr(p)
			if err := t.UpdateCategory(ctx, c); err != nil {
				return err
			}
		}
		for _, r := range exp.Rows.Contents {
			r.SubjectID = sub.ID
			owner, ok := ids[r.CategoryID]
			if !ok {
				owner = root
			}
			r.CategoryID = owner
			if _, err := t.InsertContent(ctx, r); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		_ = s.DeleteSubject(ctx, sub.ID)
		return model.Subject{}, fmt.Errorf("import %q: %w", name, err)
	}
	s.log.Info().Int64("subject", sub.ID).Int("categories", len(exp.Rows.Categories)).
		Int("contents", len(exp.Rows.Contents)).Msg("subject imported")
	return sub, nil
}
