package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"noteline/internal/model"
)

var ErrSubjectNotFound = errors.New("subject not found")

// CreateSubject adds a subject together with its root category.
func (s *Store) CreateSubject(ctx context.Context, name string) (model.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Subject{}, errors.New("subject name is empty")
	}
	sub := model.Subject{Name: name, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	err := s.do(ctx, "create subject", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		res, err := tx.ExecContext(ctx, `INSERT INTO subject(name, created_at_unixms) VALUES(?, ?)`, name, sub.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("create subject %q: %w", name, err)
		}
		if sub.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, err := ensureRoot(ctx, tx, sub.ID); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return model.Subject{}, err
	}
	s.log.Info().Int64("subject", sub.ID).Str("name", name).Msg("subject created")
	return sub, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	out := []model.Subject{}
	err := s.do(ctx, "list subjects", func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at_unixms FROM subject ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var (
				sub model.Subject
				ms  int64
			)
			if err := rows.Scan(&sub.ID, &sub.Name, &ms); err != nil {
				return err
			}
			sub.CreatedAt = time.UnixMilli(ms).UTC()
			out = append(out, sub)
		}
		return rows.Err()
	})
	return out, err
}

// FindSubject resolves a subject by numeric id or by exact name.
func (s *Store) FindSubject(ctx context.Context, ref string) (model.Subject, error) {
	ref = strings.TrimSpace(ref)
	subs, err := s.ListSubjects(ctx)
	if err != nil {
		return model.Subject{}, err
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, sub := range subs {
			if sub.ID == id {
				return sub, nil
			}
		}
	}
	for _, sub := range subs {
		if sub.Name == ref {
			return sub, nil
		}
	}
	return model.Subject{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, ref)
}

func (s *Store) RenameSubject(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("subject name is empty")
	}
	return s.do(ctx, "rename subject", func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE subject SET name = ? WHERE id = ?`, name, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrSubjectNotFound, id)
		}
		return nil
	})
}

// DeleteSubject removes a subject with all of its categories and content.
func (s *Store) DeleteSubject(ctx context.Context, id int64) error {
	return s.do(ctx, "delete subject", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		stmts := []string{
			`DELETE FROM content WHERE subject_id = ?`,
			`UPDATE category SET parent_category_id = NULL WHERE subject_id = ?`,
			`DELETE FROM category WHERE subject_id = ?`,
		}
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM subject WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrSubjectNotFound, id)
		}
		return tx.Commit()
	})
}
