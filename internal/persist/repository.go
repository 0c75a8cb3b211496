// Package persist synchronizes an outline.Document with relational storage.
package persist

import (
	"context"

	"noteline/internal/model"
)

// Repository is the storage collaborator. Implementations provide ACID
// transactions and retry transient lock errors themselves.
type Repository interface {
	// LoadSubject returns every category and content row of a subject. Root
	// is zero-valued when the subject has no root category yet.
	LoadSubject(ctx context.Context, subjectID int64) (model.SubjectRows, error)
	// EnsureRootCategory returns the id of the subject's root category,
	// creating it when missing.
	EnsureRootCategory(ctx context.Context, subjectID int64) (int64, error)
	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of writes a save may issue.
type Tx interface {
	InsertCategory(ctx context.Context, c model.Category) (int64, error)
	UpdateCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	InsertContent(ctx context.Context, c model.ContentRow) (int64, error)
	UpdateContent(ctx context.Context, c model.ContentRow) error
	DeleteContent(ctx context.Context, id int64) error
	// ReassignContent moves every content row of one category to another.
	ReassignContent(ctx context.Context, fromCategoryID, toCategoryID int64) error
	RenumberCategory(ctx context.Context, id int64, order int) error
	RenumberContent(ctx context.Context, id int64, order int) error
}
