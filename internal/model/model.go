package model

import "time"

type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Category is the persisted form of a heading line.
// The root category (Root=true, Level=0) is reserved per subject and holds
// content that precedes the first heading.
type Category struct {
	ID           int64  `json:"categoryId"`
	SubjectID    int64  `json:"subjectId"`
	Title        string `json:"title"`
	Level        int    `json:"level"`
	ParentID     *int64 `json:"parentCategoryId,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
	Root         bool   `json:"root,omitempty"`
}

// ContentRow is the persisted form of a content or image line.
type ContentRow struct {
	ID           int64       `json:"textId"`
	SubjectID    int64       `json:"subjectId"`
	Content      string      `json:"content"`
	ContentType  ContentType `json:"contentType"`
	ImageURL     *string     `json:"imageUrl,omitempty"`
	CategoryID   int64       `json:"categoryId"`
	DisplayOrder int         `json:"displayOrder"`
}

// SubjectRows is everything stored for one subject.
type SubjectRows struct {
	Root       Category     `json:"root"`
	Categories []Category   `json:"categories"`
	Contents   []ContentRow `json:"contents"`
}

func Int64Ptr(v int64) *int64 { return &v }

func StringPtr(s string) *string { return &s }
