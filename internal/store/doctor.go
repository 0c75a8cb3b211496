package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"noteline/internal/model"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level     DoctorIssueLevel `json:"level"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	SubjectID int64            `json:"subjectId,omitempty"`
	Table     string           `json:"table,omitempty"`
	RowID     int64            `json:"rowId,omitempty"`
}

type DoctorReport struct {
	Issues []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

// Doctor checks the stored hierarchy of every subject. Load repairs most of
// what it reports; the report exists so damage is visible before that.
func (s *Store) Doctor(ctx context.Context) (DoctorReport, error) {
	subs, err := s.ListSubjects(ctx)
	if err != nil {
		return DoctorReport{}, err
	}
	var issues []DoctorIssue
	for _, sub := range subs {
		rows, err := s.LoadSubject(ctx, sub.ID)
		if err != nil {
			return DoctorReport{}, err
		}
		issues = append(issues, checkSubject(sub.ID, rows)...)
	}
	return DoctorReport{Issues: issuesOrEmpty(issues)}, nil
}

func checkSubject(subjectID int64, rows model.SubjectRows) []DoctorIssue {
	var issues []DoctorIssue
	add := func(level DoctorIssueLevel, code, table string, id int64, format string, args ...any) {
		issues = append(issues, DoctorIssue{
			Level:     level,
			Code:      code,
			Message:   fmt.Sprintf(format, args...),
			SubjectID: subjectID,
			Table:     table,
			RowID:     id,
		})
	}
	if rows.Root.ID == 0 {
		add(DoctorIssueLevelError, "missing_root", "category", 0, "subject has no root category")
	}

	byID := map[int64]model.Category{}
	for _, c := range rows.Categories {
		byID[c.ID] = c
	}
	for _, c := range rows.Categories {
		if c.Level < 1 || c.Level > 6 {
			add(DoctorIssueLevelWarn, "bad_level", "category", c.ID, "category %q has level %d", c.Title, c.Level)
		}
		if c.ParentID == nil || *c.ParentID == rows.Root.ID {
			continue
		}
		p, ok := byID[*c.ParentID]
		if !ok {
			add(DoctorIssueLevelWarn, "orphan_category", "category", c.ID, "category %q has missing parent %d", c.Title, *c.ParentID)
			continue
		}
		if p.Level >= c.Level {
			add(DoctorIssueLevelWarn, "parent_level", "category", c.ID, "category %q (level %d) nests under level %d", c.Title, c.Level, p.Level)
		}
	}
	for _, c := range rows.Categories {
		seen := map[int64]bool{c.ID: true}
		cur := c
		for cur.ParentID != nil {
			p, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			if seen[p.ID] {
				add(DoctorIssueLevelError, "category_cycle", "category", c.ID, "category %q is part of a parent cycle", c.Title)
				break
			}
			seen[p.ID] = true
			cur = p
		}
	}

	for _, r := range rows.Contents {
		if _, ok := byID[r.CategoryID]; !ok && r.CategoryID != rows.Root.ID {
			add(DoctorIssueLevelError, "orphan_content", "content", r.ID, "content row points at unknown category %d", r.CategoryID)
		}
		if r.ContentType == model.ContentTypeImage && (r.ImageURL == nil || *r.ImageURL == "") {
			add(DoctorIssueLevelWarn, "image_without_url", "content", r.ID, "image row has no url")
		}
	}

	orders := map[int][]string{}
	for _, c := range rows.Categories {
		orders[c.DisplayOrder] = append(orders[c.DisplayOrder], "category "+strconv.FormatInt(c.ID, 10))
	}
	for _, r := range rows.Contents {
		orders[r.DisplayOrder] = append(orders[r.DisplayOrder], "content "+strconv.FormatInt(r.ID, 10))
	}
	keys := make([]int, 0, len(orders))
	for k, v := range orders {
		if len(v) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	for _, k := range keys {
		add(DoctorIssueLevelWarn, "duplicate_order", "", 0, "display order %d shared by %v", k, orders[k])
	}
	return issues
}

func issuesOrEmpty(xs []DoctorIssue) []DoctorIssue {
	if xs == nil {
		return []DoctorIssue{}
	}
	return xs
}
