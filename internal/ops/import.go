package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any problem, import nothing (atomic)
	ImportModeSkip    ImportMode = "skip"    // keep existing results, import the rest
	ImportModeReplace ImportMode = "replace" // overwrite existing results with the file's copy
)

// maxImportLine bounds a single JSONL record; portraits stored as data URIs are large.
const maxImportLine = 32 * 1024 * 1024

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line or record.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type parsedRecord struct {
	line   int
	result *creation.Result
}

// Import restores results from a JSONL export file.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeSkip, ImportModeReplace:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip, replace")
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.MuseError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors, err := parseExportFile(file)
	if err != nil {
		return nil, err
	}

	if input.Mode == ImportModeError {
		if len(parseErrors) > 0 {
			return &ImportOutput{Errors: parseErrors}, nil
		}
		return importAtomic(ctx, database, records)
	}
	return importEach(ctx, database, records, parseErrors, input.Mode)
}

// parseExportFile reads every record line. Line-level problems are collected;
// an unsupported header schema fails the whole file.
func parseExportFile(r io.Reader) ([]parsedRecord, []ImportError, error) {
	var (
		records     []parsedRecord
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record creation.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if record.MuseExport {
			if record.SchemaVersion != ExportSchemaVersion {
				return nil, nil, errors.NewInvalidRequest(
					fmt.Sprintf("unsupported export schema version %q", record.SchemaVersion))
			}
			continue
		}

		if msg := checkRecord(&record); msg != "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      record.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}

		records = append(records, parsedRecord{line: lineNum, result: record.ToResult()})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors, nil
}

// checkRecord returns a reason the record cannot be restored, or "".
func checkRecord(r *creation.ExportRecord) string {
	switch {
	case r.ID == "":
		return "missing id field"
	case r.Poem == "":
		return "missing poem field"
	case r.PortraitURL == "":
		return "missing portrait_url field"
	case r.CreatedAt <= 0:
		return "missing created_at field"
	}
	return ""
}

// importAtomic inserts every record in one transaction and rolls back on the
// first id collision.
func importAtomic(ctx context.Context, database *sql.DB, records []parsedRecord) (*ImportOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		exists, err := db.Exists(ctx, tx, rec.result.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return &ImportOutput{
				Errors: []ImportError{collision(rec)},
			}, nil
		}
		if err := db.Insert(ctx, tx, normalizeImported(rec.result)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportOutput{Imported: len(records), Errors: []ImportError{}}, nil
}

// importEach inserts records one at a time. An id that already exists is
// skipped, or overwritten in replace mode.
func importEach(ctx context.Context, database *sql.DB, records []parsedRecord, parseErrors []ImportError, mode ImportMode) (*ImportOutput, error) {
	out := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  append([]ImportError{}, parseErrors...),
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		err := db.Insert(ctx, database, normalizeImported(rec.result))
		if err == db.ErrUniqueConstraint && mode == ImportModeReplace {
			err = db.ReplaceByID(ctx, database, rec.result)
		} else if err == db.ErrUniqueConstraint {
			out.Skipped++
			out.Errors = append(out.Errors, collision(rec))
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Imported++
	}

	return out, nil
}

// normalizeImported fills updated_at for records written before it existed.
func normalizeImported(r *creation.Result) *creation.Result {
	if r.UpdatedAt < r.CreatedAt {
		r.UpdatedAt = r.CreatedAt
	}
	return r
}

func collision(rec parsedRecord) ImportError {
	return ImportError{
		Line:    rec.line,
		ID:      rec.result.ID,
		Code:    "ID_COLLISION",
		Message: fmt.Sprintf("result with id %q already exists", rec.result.ID),
	}
}
