package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	IncludePortrait bool // default: false (summary only)
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *LatestItem `json:"item"` // nil if nothing has been generated yet
}

// LatestItem is the newest result's summary with optional full content.
type LatestItem struct {
	creation.Summary
	Poem        string `json:"poem"`
	PortraitURL string `json:"portrait_url,omitempty"` // only if include_portrait
}

// Latest retrieves the most recently created result.
func Latest(ctx context.Context, database *sql.DB, input LatestInput) (*LatestOutput, error) {
	r, err := db.GetLatest(ctx, database)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return &LatestOutput{Item: nil}, nil
	}

	item := &LatestItem{
		Summary: r.ToSummary(),
		Poem:    r.Poem,
	}
	if input.IncludePortrait {
		item.PortraitURL = r.PortraitURL
	}
	return &LatestOutput{Item: item}, nil
}
