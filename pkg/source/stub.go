package source

import (
	"context"

	"github.com/elonfeng/hnpipe/pkg/table"
)

// Stub serves a fixed pair of items for tests and offline runs.
type Stub struct {
	items map[int64]Item
	maxID int64
}

// NewStub returns the standard two-item stub: a comment (id 1) and a
// story (id 2).
func NewStub() *Stub {
	return &Stub{
		items: map[int64]Item{
			1: NewItem(1, "comment", "the first comment", "user1"),
			2: NewItem(2, "story", "an awesome story", "user2"),
		},
		maxID: 2,
	}
}

// NewStubWith builds a stub over arbitrary items. The max id is reported as
// given, whether or not an item exists for it.
func NewStubWith(maxID int64, items ...Item) *Stub {
	s := &Stub{items: make(map[int64]Item, len(items)), maxID: maxID}
	for _, it := range items {
		if it.ID != nil {
			s.items[*it.ID] = it
		}
	}
	return s
}

// Fields returns the same columns as the live client.
func (s *Stub) Fields() []table.Column { return Fields() }

// FetchItemByID returns Unknown for ids the stub does not hold.
func (s *Stub) FetchItemByID(_ context.Context, id int64) (Item, error) {
	it, ok := s.items[id]
	if !ok {
		return Unknown, nil
	}
	return it, nil
}

// FetchMaxItemID returns the max id the stub was built with.
func (s *Stub) FetchMaxItemID(context.Context) (int64, error) {
	return s.maxID, nil
}

// NewItem builds a fully populated item.
func NewItem(id int64, typ, title, by string) Item {
	return Item{ID: &id, Type: &typ, Title: &title, By: &by}
}
