package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID              string
	IncludePortrait *bool // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	creation.Result // embedded (copy, not pointer)
}

// Fetch retrieves a result by id.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{Result: *r}

	includePortrait := true
	if input.IncludePortrait != nil {
		includePortrait = *input.IncludePortrait
	}
	if !includePortrait {
		output.PortraitURL = ""
	}

	return output, nil
}
