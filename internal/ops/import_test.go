package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
)

const importHeader = `{"_muse_export":true,"schema_version":"1.0","exported_at":1767225600}`

func recordLine(id string) string {
	return `{"id":"` + id + `","poem":"a poem","portrait_url":"https://img/` + id + `.png","portrait_style":"marvel","name":"Ada","designation":"Engineer","company":"Acme","reference_count":2,"created_at":1767225600,"updated_at":1767225600}`
}

// writeImportFile writes lines into an allowed directory and returns the path and config.
func writeImportFile(t *testing.T, lines ...string) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "import.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path, exportConfig(dir)
}

func TestImport_ErrorMode(t *testing.T) {
	database := openTestDB(t)
	path, cfg := writeImportFile(t, importHeader, recordLine("01IMP1"), recordLine("01IMP2"))

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 2 || out.Skipped != 0 || len(out.Errors) != 0 {
		t.Fatalf("Import() = %+v", out)
	}

	r, err := db.GetByID(context.Background(), database, "01IMP2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if r.PortraitStyle != "marvel" || r.ReferenceCount != 2 {
		t.Errorf("imported = %+v", r)
	}
}

func TestImport_ErrorModeIsAtomicOnCollision(t *testing.T) {
	database := openTestDB(t)
	seedResult(t, database, "01TAKEN", 0)
	path, cfg := writeImportFile(t, importHeader, recordLine("01FRESH"), recordLine("01TAKEN"))

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path, Mode: ImportModeError})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 0 || len(out.Errors) != 1 || out.Errors[0].Code != "ID_COLLISION" {
		t.Fatalf("Import() = %+v, want single ID_COLLISION", out)
	}
	if out.Errors[0].Line != 3 {
		t.Errorf("collision line = %d, want 3", out.Errors[0].Line)
	}

	exists, err := db.Exists(context.Background(), database, "01FRESH")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("01FRESH was imported despite rollback")
	}
}

func TestImport_ErrorModeRejectsBadLines(t *testing.T) {
	database := openTestDB(t)
	path, cfg := writeImportFile(t, importHeader, recordLine("01OK"), `{not json`, `{"poem":"no id"}`)

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 0 || len(out.Errors) != 2 {
		t.Fatalf("Import() = %+v, want 2 errors and nothing imported", out)
	}
	if out.Errors[0].Code != "PARSE_ERROR" || out.Errors[1].Code != "INVALID_RECORD" {
		t.Errorf("codes = %s, %s", out.Errors[0].Code, out.Errors[1].Code)
	}
}

func TestImport_SkipMode(t *testing.T) {
	database := openTestDB(t)
	seedResult(t, database, "01EXISTING", 0)
	path, cfg := writeImportFile(t, importHeader, recordLine("01EXISTING"), recordLine("01NEW"), `garbage`)

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path, Mode: ImportModeSkip})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 1 || out.Skipped != 2 {
		t.Fatalf("Import() = %+v, want 1 imported, 2 skipped", out)
	}

	// Existing record untouched
	r, err := db.GetByID(context.Background(), database, "01EXISTING")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if r.PortraitStyle != "professional" {
		t.Errorf("existing result overwritten: %+v", r)
	}
}

func TestImport_ReplaceMode(t *testing.T) {
	database := openTestDB(t)
	seedResult(t, database, "01EXISTING", 0)
	path, cfg := writeImportFile(t, importHeader, recordLine("01EXISTING"), recordLine("01NEW"))

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path, Mode: ImportModeReplace})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 2 || out.Skipped != 0 {
		t.Fatalf("Import() = %+v, want 2 imported", out)
	}

	r, err := db.GetByID(context.Background(), database, "01EXISTING")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if r.PortraitStyle != "marvel" || r.PortraitURL != "https://img/01EXISTING.png" {
		t.Errorf("existing result not replaced: %+v", r)
	}
}

func TestImport_UnsupportedSchema(t *testing.T) {
	path, cfg := writeImportFile(t, `{"_muse_export":true,"schema_version":"9.9"}`, recordLine("01X"))

	_, err := Import(context.Background(), openTestDB(t), cfg, ImportInput{Path: path})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Import() = %v, want INVALID_REQUEST", err)
	}
}

func TestImport_InputErrors(t *testing.T) {
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := exportConfig(dir)

	tests := []struct {
		name  string
		input ImportInput
		code  errors.ErrorCode
	}{
		{"missing path", ImportInput{}, errors.ErrInvalidRequest},
		{"bad mode", ImportInput{Path: filepath.Join(dir, "a.jsonl"), Mode: "replace"}, errors.ErrInvalidRequest},
		{"missing file", ImportInput{Path: filepath.Join(dir, "missing.jsonl")}, errors.ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(context.Background(), database, cfg, tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("Import() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestImport_LargePortraitLine(t *testing.T) {
	database := openTestDB(t)
	big := `{"id":"01BIG","poem":"p","portrait_url":"data:image/png;base64,` + strings.Repeat("A", 2*1024*1024) + `","portrait_style":"gta","name":"Ada","designation":"E","company":"C","created_at":1767225600}`
	path, cfg := writeImportFile(t, importHeader, big)

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.Imported != 1 {
		t.Fatalf("Import() = %+v, want 1 imported", out)
	}

	r, err := db.GetByID(context.Background(), database, "01BIG")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if r.UpdatedAt != r.CreatedAt {
		t.Errorf("UpdatedAt = %d, want backfilled to CreatedAt %d", r.UpdatedAt, r.CreatedAt)
	}
}
