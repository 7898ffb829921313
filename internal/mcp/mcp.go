// Package mcp exposes the board to coding agents over the Model Context
// Protocol. Tools return JSON text; failures are tool errors whose text is
// {"error": "..."}.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/featureboard/featureboard/internal/lanes"
)

// NewServer registers every feature tool against engine.
func NewServer(engine *lanes.Engine, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := server.NewMCPServer(
		"featureboard",
		version,
		server.WithToolCapabilities(true),
	)
	registerTools(srv, engine, logger)
	return srv
}

// ServeStdio runs srv on stdin/stdout until the client disconnects.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

func featureIDArg(desc string) mcp.ToolOption {
	return mcp.WithNumber("feature_id", mcp.Required(), mcp.Description(desc))
}

func registerTools(srv *server.MCPServer, e *lanes.Engine, logger *slog.Logger) {
	srv.AddTool(
		mcp.NewTool("feature_get_stats",
			mcp.WithDescription("Get progress statistics: passing, in-progress and total feature counts plus the completion percentage."),
		),
		handleStats(e),
	)

	srv.AddTool(
		mcp.NewTool("feature_get_next",
			mcp.WithDescription("Get the highest-priority pending feature (not passing, not in progress)."),
		),
		handleNext(e),
	)

	srv.AddTool(
		mcp.NewTool("feature_get_by_id",
			mcp.WithDescription("Get a single feature by id, whatever its state."),
			featureIDArg("The id of the feature to fetch"),
		),
		handleByID(e),
	)

	srv.AddTool(
		mcp.NewTool("feature_mark_in_progress",
			mcp.WithDescription("Claim a pending feature so other agents skip it. Fails if it is already in progress or passing."),
			featureIDArg("The id of the feature to claim"),
		),
		withLog(logger, "feature_mark_in_progress", handleMutation(e.MarkInProgress)),
	)

	srv.AddTool(
		mcp.NewTool("feature_mark_passing",
			mcp.WithDescription("Mark a feature as passing once it is implemented and verified. Clears the in-progress flag."),
			featureIDArg("The id of the feature that now passes"),
		),
		withLog(logger, "feature_mark_passing", handleMutation(e.MarkPassing)),
	)

	srv.AddTool(
		mcp.NewTool("feature_clear_in_progress",
			mcp.WithDescription("Release an in-progress claim and return the feature to the pending queue."),
			featureIDArg("The id of the feature to release"),
		),
		withLog(logger, "feature_clear_in_progress", handleMutation(e.ClearInProgress)),
	)

	srv.AddTool(
		mcp.NewTool("feature_skip",
			mcp.WithDescription("Move a pending feature to the end of the queue, for example when it is blocked."),
			featureIDArg("The id of the feature to skip"),
		),
		withLog(logger, "feature_skip", handleMutation(e.Skip)),
	)

	srv.AddTool(
		mcp.NewTool("feature_create_bulk",
			mcp.WithDescription("Create several features at once. They are added after every existing feature in the order given."),
			mcp.WithArray("features",
				mcp.Required(),
				mcp.Description("Features to create, each with category, name, description and steps"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category":    map[string]any{"type": "string"},
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"steps":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"category", "name"},
				}),
			),
		),
		withLog(logger, "feature_create_bulk", handleCreateBulk(e)),
	)
}

func withLog(logger *slog.Logger, tool string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := next(ctx, req)
		if res != nil && res.IsError {
			logger.Warn("tool failed", "tool", tool)
		} else if err == nil {
			logger.Info("tool called", "tool", tool)
		}
		return res, err
	}
}

func handleStats(e *lanes.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := e.Stats(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(stats), nil
	}
}

func handleNext(e *lanes.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f, err := e.Next(ctx)
		if errors.Is(err, lanes.ErrNoPending) {
			return errorText("No pending features. All features are passing or in progress."), nil
		}
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(f), nil
	}
}

func handleByID(e *lanes.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := featureID(req)
		if err != nil {
			return errorResult(err), nil
		}
		f, err := e.Get(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(f), nil
	}
}

// handleMutation adapts an engine method taking a feature id.
func handleMutation[T any](fn func(ctx context.Context, id int64) (T, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := featureID(req)
		if err != nil {
			return errorResult(err), nil
		}
		out, err := fn(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(out), nil
	}
}

type bulkResult struct {
	Created  int         `json:"created"`
	Features interface{} `json:"features"`
}

func handleCreateBulk(e *lanes.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := req.GetArguments()["features"]
		if !ok {
			return errorText("features is required"), nil
		}
		// Arguments arrive as generic JSON values; round-trip them into the
		// typed input.
		data, err := json.Marshal(raw)
		if err != nil {
			return errorResult(err), nil
		}
		var in []lanes.NewFeature
		if err := json.Unmarshal(data, &in); err != nil {
			return errorText(fmt.Sprintf("features must be an array of feature objects: %v", err)), nil
		}
		created, err := e.CreateBulk(ctx, in)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(bulkResult{Created: len(created), Features: created}), nil
	}
}

func featureID(req mcp.CallToolRequest) (int64, error) {
	v, ok := req.GetArguments()["feature_id"].(float64)
	if !ok {
		return 0, errors.New("feature_id is required")
	}
	if v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("feature_id must be a positive integer, got %v", v)
	}
	return int64(v), nil
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(string(data))
}

func errorResult(err error) *mcp.CallToolResult {
	return errorText(err.Error())
}

func errorText(msg string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return mcp.NewToolResultError(string(data))
}
