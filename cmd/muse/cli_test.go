package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/ops"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// testConfig returns a demo-provider config with no artificial delay.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderDemo
	cfg.DemoBaseDelayMS = 0
	cfg.DemoPerImageDelayMS = 0
	cfg.AllowUnsafePaths = true
	return cfg
}

// writeFile writes data into dir/name and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()

	app := newCLIApp(database, cfg, nil)
	runErr := app.Run(append([]string{"muse"}, args...))

	w.Close()
	out := <-done
	os.Stdout = oldStdout
	return string(out), runErr
}

func generateAda(t *testing.T, database *sql.DB, cfg *config.Config, style string) creation.Result {
	t.Helper()
	dir := t.TempDir()
	mainImg := writeFile(t, dir, "main.png", pngBytes)
	aux := writeFile(t, dir, "aux.png", pngBytes)

	out, err := runCLI(t, database, cfg, "generate",
		"--name", "Ada", "--designation", "Engineer", "--company", "Acme",
		"--email", "ada@acme.com", "--image", mainImg, "--image", aux, "--style", style)
	if err != nil {
		t.Fatalf("generate command failed: %v", err)
	}

	var result creation.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	return result
}

func TestGenerateCommand(t *testing.T) {
	database := setupTestDB(t)
	cfg := testConfig()

	result := generateAda(t, database, cfg, "LinkedIn")

	if result.ID == "" {
		t.Error("expected an id")
	}
	if !strings.Contains(result.Poem, "Ada") {
		t.Errorf("poem should mention the name: %q", result.Poem)
	}
	if result.PortraitStyle != creation.StyleLinkedIn {
		t.Errorf("style = %q, want linkedin", result.PortraitStyle)
	}
	if result.ReferenceCount != 2 {
		t.Errorf("reference_count = %d, want 2", result.ReferenceCount)
	}
	if result.CreatedAt == 0 || result.UpdatedAt != result.CreatedAt {
		t.Errorf("timestamps = %d/%d", result.CreatedAt, result.UpdatedAt)
	}

	stored, err := ops.Fetch(context.Background(), database, ops.FetchInput{ID: result.ID})
	if err != nil {
		t.Fatalf("stored result not found: %v", err)
	}
	if stored.Poem != result.Poem {
		t.Error("stored poem differs from printed poem")
	}
}

func TestGenerateCommand_InvalidDetails(t *testing.T) {
	database := setupTestDB(t)

	_, err := runCLI(t, database, testConfig(), "generate",
		"--name", "Ada", "--designation", "Engineer", "--company", "Acme",
		"--email", "ada-at-acme")
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "[VALIDATION_ERROR]") || !strings.Contains(msg, "email: Please enter a valid email address") {
		t.Errorf("unexpected error: %s", msg)
	}
}

func TestGenerateCommand_NoImages(t *testing.T) {
	database := setupTestDB(t)

	_, err := runCLI(t, database, testConfig(), "generate",
		"--name", "Ada", "--designation", "Engineer", "--company", "Acme",
		"--email", "ada@acme.com")
	if err == nil || !strings.Contains(err.Error(), "[MISSING_INPUT]") {
		t.Fatalf("expected MISSING_INPUT, got %v", err)
	}

	count, err := db.Count(context.Background(), database)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestGenerateCommand_UnknownProvider(t *testing.T) {
	database := setupTestDB(t)
	cfg := testConfig()
	cfg.Provider = "dalle"

	_, err := runCLI(t, database, cfg, "generate",
		"--name", "Ada", "--designation", "Engineer", "--company", "Acme",
		"--email", "ada@acme.com")
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestReadImages(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "a.png", pngBytes)
	txt := writeFile(t, dir, "notes.png", []byte("plain text pretending to be a photo"))

	t.Run("ordered data URIs", func(t *testing.T) {
		imgs, err := readImages([]string{png, png}, 0)
		if err != nil {
			t.Fatalf("readImages: %v", err)
		}
		if len(imgs) != 2 || !strings.HasPrefix(string(imgs[0]), "data:image/png;base64,") {
			t.Errorf("images = %v", imgs)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readImages([]string{filepath.Join(dir, "nope.png")}, 0)
		if !errors.Is(err, errors.ErrFileNotFound) {
			t.Errorf("err = %v, want FILE_NOT_FOUND", err)
		}
	})

	t.Run("not an image reports its position", func(t *testing.T) {
		_, err := readImages([]string{png, txt}, 0)
		if !errors.Is(err, errors.ErrInvalidImage) {
			t.Fatalf("err = %v, want INVALID_IMAGE", err)
		}
		if !strings.Contains(err.Error(), "image 1") {
			t.Errorf("err = %v, want index 1", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		_, err := readImages([]string{png}, 8)
		if !errors.Is(err, errors.ErrInvalidImage) {
			t.Errorf("err = %v, want INVALID_IMAGE", err)
		}
	})

	t.Run("more than three", func(t *testing.T) {
		_, err := readImages([]string{png, png, png, png}, 0)
		if !errors.Is(err, errors.ErrOverCapacity) {
			t.Errorf("err = %v, want OVER_CAPACITY", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	database := setupTestDB(t)
	cfg := testConfig()

	first := generateAda(t, database, cfg, "gta")
	second := generateAda(t, database, cfg, "marvel")

	t.Run("list newest first", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "list")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var output ops.ListOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(output.Items) != 2 || output.Items[0].ID != second.ID || output.Items[1].ID != first.ID {
			t.Errorf("items = %+v", output.Items)
		}
		if output.Pagination.Total != 2 {
			t.Errorf("total = %d, want 2", output.Pagination.Total)
		}
	})

	t.Run("fetch without portrait", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "fetch", "--no-portrait", first.ID)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		var output ops.FetchOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if output.ID != first.ID || output.PortraitURL != "" {
			t.Errorf("output = %+v", output)
		}
	})

	t.Run("fetch unknown id", func(t *testing.T) {
		_, err := runCLI(t, database, cfg, "fetch", "01UNKNOWN")
		if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
			t.Errorf("err = %v, want NOT_FOUND", err)
		}
	})

	t.Run("latest", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "latest")
		if err != nil {
			t.Fatalf("latest failed: %v", err)
		}
		var output ops.LatestOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if output.Item == nil || output.Item.ID != second.ID {
			t.Errorf("latest = %+v", output.Item)
		}
	})
}

func TestExportImportCommands(t *testing.T) {
	source := setupTestDB(t)
	cfg := testConfig()
	generateAda(t, source, cfg, "avatar")

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	out, err := runCLI(t, source, cfg, "export", "--path", path)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if exported.Count != 1 || exported.Path != path {
		t.Errorf("export = %+v", exported)
	}

	target := setupTestDB(t)
	out, err = runCLI(t, target, cfg, "import", path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported ops.ImportOutput
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if imported.Imported != 1 {
		t.Errorf("import = %+v", imported)
	}

	// Importing again in skip mode keeps the existing record
	out, err = runCLI(t, target, cfg, "import", "--mode", "skip", path)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if imported.Imported != 0 || imported.Skipped != 1 {
		t.Errorf("skip import = %+v", imported)
	}

	if _, err := runCLI(t, target, cfg, "import"); err == nil {
		t.Error("expected error without a path")
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(errors.NewValidation(map[string]string{
		"name":  "Name is required",
		"email": "Email is required",
	}))
	want := "[VALIDATION_ERROR] invalid fields: email, name\n  email: Email is required\n  name: Name is required"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	if got := outputError(io.EOF).Error(); got != "EOF" {
		t.Errorf("got %q, want EOF", got)
	}
}

func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		args []string
		cli  bool
		help bool
	}{
		{[]string{"muse"}, false, false},
		{[]string{"muse", "serve"}, true, false},
		{[]string{"muse", "generate"}, true, false},
		{[]string{"muse", "--version"}, true, true},
		{[]string{"muse", "help"}, true, true},
		{[]string{"muse", "store"}, false, false},
	}
	for _, tt := range tests {
		os.Args = tt.args
		if got := isCLIMode(); got != tt.cli {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.cli)
		}
		if got := isHelpOrVersion(); got != tt.help {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.help)
		}
	}
}
