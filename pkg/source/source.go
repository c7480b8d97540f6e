package source

import (
	"context"

	"github.com/elonfeng/hnpipe/pkg/table"
)

// Field names of a raw item as the source reports them.
const (
	FieldID    = "id"
	FieldType  = "type"
	FieldTitle = "title"
	FieldBy    = "by"
)

// Item is a single Hacker News record. Every field is optional; the zero
// Item is the sentinel for an id the source does not know.
type Item struct {
	ID    *int64  `json:"id,omitempty"`
	Type  *string `json:"type,omitempty"`
	Title *string `json:"title,omitempty"`
	By    *string `json:"by,omitempty"`
}

// Unknown is returned for ids the source has no record for.
var Unknown = Item{}

// IsUnknown reports whether every field is absent.
func (i Item) IsUnknown() bool {
	return i.ID == nil && i.Type == nil && i.Title == nil && i.By == nil
}

// Value returns the named field as a table cell: int64, string or nil.
func (i Item) Value(field string) any {
	switch field {
	case FieldID:
		if i.ID != nil {
			return *i.ID
		}
	case FieldType:
		if i.Type != nil {
			return *i.Type
		}
	case FieldTitle:
		if i.Title != nil {
			return *i.Title
		}
	case FieldBy:
		if i.By != nil {
			return *i.By
		}
	}
	return nil
}

// Client is the capability the pipeline needs from an item source.
type Client interface {
	FetchItemByID(ctx context.Context, id int64) (Item, error)
	FetchMaxItemID(ctx context.Context) (int64, error)
	Fields() []table.Column
}

// Fields is the fixed column layout shared by every client.
func Fields() []table.Column {
	return []table.Column{
		{Name: FieldID, Type: table.TypeInt},
		{Name: FieldType, Type: table.TypeString},
		{Name: FieldTitle, Type: table.TypeString},
		{Name: FieldBy, Type: table.TypeString},
	}
}
