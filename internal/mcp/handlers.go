package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/muse/internal/config"
	"github.com/hpungsan/muse/internal/errors"
	"github.com/hpungsan/muse/internal/logging"
	"github.com/hpungsan/muse/internal/ops"
)

// Tool definitions. Every tool is read-only over stored results except
// result_export, which writes a file.
var (
	fetchToolDef = mcp.NewTool("result_fetch",
		mcp.WithDescription("Fetch a generated poem and portrait by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Result id (ULID)")),
		mcp.WithBoolean("include_portrait", mcp.Description("Include the portrait URL or data URI (default true)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	listToolDef = mcp.NewTool("result_list",
		mcp.WithDescription("List generated results, newest first."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
		mcp.WithNumber("offset", mcp.Description("Items to skip (default 0)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	latestToolDef = mcp.NewTool("result_latest",
		mcp.WithDescription("Fetch the most recently generated result, or null if none exist."),
		mcp.WithBoolean("include_portrait", mcp.Description("Include the portrait URL or data URI (default false)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	exportToolDef = mcp.NewTool("result_export",
		mcp.WithDescription("Export every result to a JSONL file."),
		mcp.WithString("path", mcp.Description("Destination .jsonl path (default ~/.muse/exports/<label>-<timestamp>.jsonl)")),
		mcp.WithString("label", mcp.Description("File name prefix for the default path")),
	)
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{db: db, cfg: cfg, logger: logging.OrNop(logger)}
}

// FetchRequest represents the arguments for result_fetch.
type FetchRequest struct {
	ID              string `json:"id"`
	IncludePortrait *bool  `json:"include_portrait,omitempty"`
}

// ListRequest represents the arguments for result_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// LatestRequest represents the arguments for result_latest.
type LatestRequest struct {
	IncludePortrait bool `json:"include_portrait,omitempty"`
}

// ExportRequest represents the arguments for result_export.
type ExportRequest struct {
	Path  string `json:"path,omitempty"`
	Label string `json:"label,omitempty"`
}

// HandleFetch handles the result_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		ID:              input.ID,
		IncludePortrait: input.IncludePortrait,
	})
	if err != nil {
		return h.fail("result_fetch", err), nil
	}
	return successResult(result)
}

// HandleList handles the result_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return h.fail("result_list", err), nil
	}
	return successResult(result)
}

// HandleLatest handles the result_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Latest(ctx, h.db, ops.LatestInput{
		IncludePortrait: input.IncludePortrait,
	})
	if err != nil {
		return h.fail("result_latest", err), nil
	}
	return successResult(result)
}

// HandleExport handles the result_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:  input.Path,
		Label: input.Label,
	})
	if err != nil {
		return h.fail("result_export", err), nil
	}
	h.logger.Info("exported results",
		zap.String("path", result.Path),
		zap.Int("count", result.Count))
	return successResult(result)
}

func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	h.logger.Debug("tool call failed",
		zap.String("tool", tool),
		zap.String("code", string(errors.CodeOf(err))))
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Internal error details are withheld so file paths and SQL never leak.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MuseError
	if stderrors.As(err, &mErr) {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
