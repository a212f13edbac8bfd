package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
)

// ExportSchemaVersion is written to every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path  string // optional, default: ~/.muse/exports/<label>-<timestamp>.jsonl
	Label string // optional file name prefix for the default path, default: "results"
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of every export file.
type ExportHeader struct {
	MuseExport    bool   `json:"_muse_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes every stored result to a JSONL file, oldest first.
// The file is written under a temporary name and renamed into place, so an
// existing export at the same path survives a failed run.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		if exportPath, err = defaultExportPath(input.Label, now); err != nil {
			return nil, err
		}
	}

	// Default paths are validated too, since the label is user input
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	count := 0
	err := writeAtomic(exportPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(ExportHeader{
			MuseExport:    true,
			SchemaVersion: ExportSchemaVersion,
			ExportedAt:    now.Unix(),
		}); err != nil {
			return errors.NewInternal(err)
		}

		rows, err := db.StreamForExport(ctx, database)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if ctx.Err() != nil {
				return errors.NewCancelled("export")
			}
			r, err := db.ScanResultFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := enc.Encode(creation.ResultToExportRecord(r)); err != nil {
				return errors.NewInternal(err)
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// writeAtomic runs fill against a buffered temp file next to path, syncs it,
// and renames it over path. The temp file is removed on any failure.
func writeAtomic(path string, fill func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(suffix) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	defer func() {
		if file != nil {
			file.Close()
		}
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := fill(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Windows cannot rename an open file
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted at the destination
	if isSymlink(path) {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Windows refuses to rename over an existing file; keep the original
		if _, statErr := os.Stat(path); runtime.GOOS == "windows" && statErr == nil {
			return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	return nil
}

// defaultExportPath builds ~/.muse/exports/<label>-<timestamp>.jsonl.
func defaultExportPath(label string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	name := "results"
	if label != "" {
		name = SanitizeForFilename(label)
	}

	filename := fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
