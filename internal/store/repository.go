package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"noteline/internal/model"
	"noteline/internal/persist"
)

var _ persist.Repository = (*Store)(nil)

// ErrRowNotFound is returned when an update or delete matches no row.
var ErrRowNotFound = errors.New("row not found")

// RootCategoryTitle names the reserved category that holds content
// preceding the first heading.
const RootCategoryTitle = "Uncategorized"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) LoadSubject(ctx context.Context, subjectID int64) (model.SubjectRows, error) {
	var out model.SubjectRows
	err := s.do(ctx, "load subject", func() error {
		cats, err := loadCategories(ctx, s.db, subjectID)
		if err != nil {
			return err
		}
		contents, err := loadContents(ctx, s.db, subjectID)
		if err != nil {
			return err
		}
		out = model.SubjectRows{Categories: []model.Category{}, Contents: contents}
		for _, c := range cats {
			if c.Root {
				out.Root = c
				continue
			}
			out.Categories = append(out.Categories, c)
		}
		return nil
	})
	return out, err
}

func loadCategories(ctx context.Context, q querier, subjectID int64) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT category_id, subject_id, title, level, parent_category_id, display_order, is_root
		FROM category WHERE subject_id = ? ORDER BY display_order, category_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var (
			c      model.Category
			parent sql.NullInt64
			root   int
		)
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Title, &c.Level, &parent, &c.DisplayOrder, &root); err != nil {
			return nil, err
		}
		if parent.Valid {
			c.ParentID = model.Int64Ptr(parent.Int64)
		}
		c.Root = root != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadContents(ctx context.Context, q querier, subjectID int64) ([]model.ContentRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT text_id, subject_id, content, content_type, image_url, category_id, display_order
		FROM content WHERE subject_id = ? ORDER BY display_order, text_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ContentRow{}
	for rows.Next() {
		var (
			c     model.ContentRow
			ctype string
			img   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Content, &ctype, &img, &c.CategoryID, &c.DisplayOrder); err != nil {
			return nil, err
		}
		c.ContentType = model.ContentType(ctype)
		if img.Valid {
			c.ImageURL = model.StringPtr(img.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) EnsureRootCategory(ctx context.Context, subjectID int64) (int64, error) {
	var id int64
	err := s.do(ctx, "ensure root", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		id, err = ensureRoot(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	return id, err
}

func ensureRoot(ctx context.Context, q querier, subjectID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT category_id FROM category WHERE subject_id = ? AND is_root = 1`, subjectID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `INSERT INTO category(subject_id, title, level, parent_category_id, display_order, is_root)
		VALUES(?, ?, 0, NULL, 0, 1)`, subjectID, RootCategoryTitle)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// WithTx runs fn in a transaction, retrying the whole transaction while the
// database is busy.
func (s *Store) WithTx(ctx context.Context, fn func(persist.Tx) error) error {
	return s.do(ctx, "transaction", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(sqlTx{tx: tx}); err != nil {
			return err
		}
		return tx.Commit()
	})
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) InsertCategory(ctx context.Context, c model.Category) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO category(subject_id, title, level, parent_category_id, display_order, is_root)
		VALUES(?, ?, ?, ?, ?, ?)`, c.SubjectID, c.Title, c.Level, c.ParentID, c.DisplayOrder, boolToInt(c.Root))
	if err != nil {
		return 0, fmt.Errorf("insert category %q: %w", c.Title, err)
	}
	return res.LastInsertId()
}

func (t sqlTx) UpdateCategory(ctx context.Context, c model.Category) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE category SET title = ?, level = ?, parent_category_id = ?, display_order = ?
		WHERE category_id = ?`, c.Title, c.Level, c.ParentID, c.DisplayOrder, c.ID)
	return affected(res, err, "update category", c.ID)
}

func (t sqlTx) DeleteCategory(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM category WHERE category_id = ? AND is_root = 0`, id)
	return affected(res, err, "delete category", id)
}

func (t sqlTx) InsertContent(ctx context.Context, c model.ContentRow) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO content(subject_id, content, content_type, image_url, category_id, display_order)
		VALUES(?, ?, ?, ?, ?, ?)`, c.SubjectID, c.Content, string(c.ContentType), c.ImageURL, c.CategoryID, c.DisplayOrder)
	if err != nil {
		return 0, fmt.Errorf("insert content: %w", err)
	}
	return res.LastInsertId()
}

func (t sqlTx) UpdateContent(ctx context.Context, c model.ContentRow) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE content SET content = ?, content_type = ?, image_url = ?, category_id = ?, display_order = ?
		WHERE text_id = ?`, c.Content, string(c.ContentType), c.ImageURL, c.CategoryID, c.DisplayOrder, c.ID)
	return affected(res, err, "update content", c.ID)
}

func (t sqlTx) DeleteContent(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM content WHERE text_id = ?`, id)
	return affected(res, err, "delete content", id)
}

func (t sqlTx) ReassignContent(ctx context.Context, from, to int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE content SET category_id = ? WHERE category_id = ?`, to, from); err != nil {
		return fmt.Errorf("reassign content %d -> %d: %w", from, to, err)
	}
	return nil
}

func (t sqlTx) RenumberCategory(ctx context.Context, id int64, order int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE category SET display_order = ? WHERE category_id = ?`, order, id)
	return affected(res, err, "renumber category", id)
}

func (t sqlTx) RenumberContent(ctx context.Context, id int64, order int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE content SET display_order = ? WHERE text_id = ?`, order, id)
	return affected(res, err, "renumber content", id)
}

func affected(res sql.Result, err error, op string, id int64) error {
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, ErrRowNotFound)
	}
	return nil
}
