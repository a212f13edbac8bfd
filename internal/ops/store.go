package ops

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/logging"
)

// ResultStore is the append/update-in-place collection of results keyed by id.
// It is safe for concurrent use; every update is a single read-modify-write
// transaction.
type ResultStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewResultStore wraps an initialized database. A nil logger discards output.
func NewResultStore(database *sql.DB, logger *zap.Logger) *ResultStore {
	return &ResultStore{db: database, logger: logging.OrNop(logger).Named("store")}
}

// Append persists a new result. An id that already exists is rejected;
// Append never overwrites.
func (s *ResultStore) Append(ctx context.Context, r *creation.Result) error {
	if r == nil || r.ID == "" {
		return errors.NewInvalidRequest("result id is required")
	}
	if err := db.Insert(ctx, s.db, r); err != nil {
		if err == db.ErrUniqueConstraint {
			return errors.NewInvalidRequest("result already exists: " + r.ID)
		}
		return err
	}
	s.logger.Debug("result appended", zap.String("id", r.ID), zap.String("style", string(r.PortraitStyle)))
	return nil
}

// UpdateByID applies patch to the result with the given id and returns the
// updated record. A missing id fails with NOT_FOUND and creates nothing.
func (s *ResultStore) UpdateByID(ctx context.Context, id string, patch creation.Patch) (*creation.Result, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("result id is required")
	}
	if patch.Empty() {
		return nil, errors.NewInvalidRequest("patch changes nothing")
	}
	updated, err := db.UpdateByID(ctx, s.db, id, patch)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.logger.Warn("update for unknown result", zap.String("id", id))
		}
		return nil, err
	}
	s.logger.Debug("result updated",
		zap.String("id", id),
		zap.Bool("poem", patch.Poem != nil),
		zap.Bool("portrait", patch.PortraitURL != nil),
	)
	return updated, nil
}

// Get returns the stored result with the given id.
func (s *ResultStore) Get(ctx context.Context, id string) (*creation.Result, error) {
	return db.GetByID(ctx, s.db, id)
}
