package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elonfeng/hnpipe/pkg/source"
	"github.com/elonfeng/hnpipe/pkg/table"
	"github.com/rs/zerolog"
)

// Asset names, which double as warehouse table names.
const (
	NameItems    = "items"
	NameComments = "comments"
	NameStories  = "stories"
)

// ColumnUserID replaces the source's "by" column in every output table.
const ColumnUserID = "user_id"

// ErrUnknownAsset is returned for selections naming an asset that does not exist.
var ErrUnknownAsset = errors.New("unknown asset")

// Asset describes one node of the pipeline graph.
type Asset struct {
	Name        string   `json:"name"`
	Deps        []string `json:"deps"`
	Description string   `json:"description"`
}

// Registry lists every asset in dependency order.
func Registry() []Asset {
	return []Asset{
		{Name: NameItems, Description: "The N most recent Hacker News items, deduplicated by id"},
		{Name: NameComments, Deps: []string{NameItems}, Description: "Items of type comment"},
		{Name: NameStories, Deps: []string{NameItems}, Description: "Items of type story"},
	}
}

// ItemsOptions tunes the items asset.
type ItemsOptions struct {
	Count int
	// SkipUnknown drops ids the source has no record for instead of
	// keeping them as an all-null row.
	SkipUnknown bool
}

// Items fetches the Count most recent items, one id at a time in ascending
// order, and returns them deduplicated by id with "by" renamed to user_id.
func Items(ctx context.Context, client source.Client, opts ItemsOptions, logger zerolog.Logger) (*table.Table, error) {
	maxID, err := client.FetchMaxItemID(ctx)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}

	raw := table.New(NameItems, client.Fields())
	start := maxID - int64(opts.Count) + 1
	for id := start; id <= maxID; id++ {
		item, err := client.FetchItemByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}

		if item.IsUnknown() {
			if opts.SkipUnknown {
				logger.Debug().Int64("id", id).Msg("skipping unknown item")
				continue
			}
			logger.Warn().Int64("id", id).Msg("unknown item id kept as an empty row")
		}

		row := make(table.Row, len(raw.Columns))
		for i, col := range raw.Columns {
			row[i] = item.Value(col.Name)
		}
		if err := raw.Append(row); err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
	}

	items, err := raw.DedupeBy(source.FieldID)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	if err := items.Rename(source.FieldBy, ColumnUserID); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	return items, nil
}

// Comments returns the rows of items whose type is "comment".
func Comments(items *table.Table) (*table.Table, error) {
	return items.Where(NameComments, source.FieldType, "comment")
}

// Stories returns the rows of items whose type is "story".
func Stories(items *table.Table) (*table.Table, error) {
	return items.Where(NameStories, source.FieldType, "story")
}

// ParseSelection splits a comma separated list of asset names. An empty
// string selects everything.
func ParseSelection(s string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !known(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, name)
		}
		names = append(names, name)
	}
	return names, nil
}

func known(name string) bool {
	for _, a := range Registry() {
		if a.Name == name {
			return true
		}
	}
	return false
}
