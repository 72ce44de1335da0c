// Package introspect exposes a read-only mark3labs/mcp-go tool server over
// a live Dispatcher, so an operator (or an AI coding agent) can inspect a
// running engine's subscription graph and paused-observer backlog without
// any mutation path into it.
//
// The tool-registration idiom (mcpserver.NewMCPServer, s.AddTool with
// mcpproto.WithString/WithDescription, JSON-marshaled structuredResult
// replies) is lifted directly from the teacher's pkg/mcp/server.go,
// adapted from brain-memory read/write/search tools to engine
// introspection, which is read-only by design: there is deliberately no
// publish/subscribe/delete tool here, since introspection must never
// become a second way to mutate the tree.
package introspect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/modelsync/modelsync/pkg/dispatch"
)

const (
	toolStats       = "modelsync_stats"
	toolTriggerGC   = "modelsync_trigger_clean_memory"
	toolListenerIDs = "modelsync_listener_ids"
)

// Backend is the minimal read-only surface the introspection tools need
// from a Dispatcher. It exists so tests can substitute a fake instead of a
// full Dispatcher.
type Backend interface {
	Stats() dispatch.Stats
	CleanMemory()
}

// NewHandler builds an MCP streamable HTTP handler exposing read-only
// introspection tools over backend.
func NewHandler(backend Backend) (http.Handler, error) {
	if backend == nil {
		return nil, fmt.Errorf("introspect: backend is required")
	}

	s := mcpserver.NewMCPServer(
		"modelsync-introspect",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s.AddTool(mcpproto.NewTool(toolStats,
		mcpproto.WithDescription("Report listener count, paused-observer count, and operations processed so far."),
	), func(_ context.Context, _ mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		return structuredResult("engine stats", backend.Stats())
	})

	s.AddTool(mcpproto.NewTool(toolTriggerGC,
		mcpproto.WithDescription("Trigger an immediate clean_memory pass, compacting weak listener and delegate slots whose referent has been collected."),
	), func(_ context.Context, _ mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		backend.CleanMemory()
		return textResult("clean_memory triggered"), nil
	})

	s.AddTool(mcpproto.NewTool(toolListenerIDs,
		mcpproto.WithDescription("Report the current listener and paused-observer counts as of this call."),
	), func(_ context.Context, _ mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		stats := backend.Stats()
		return structuredResult("listener snapshot", map[string]int{
			"listener_count": stats.ListenerCount,
			"paused_count":   stats.PausedCount,
		})
	})

	streamable := mcpserver.NewStreamableHTTPServer(s)
	return http.HandlerFunc(streamable.ServeHTTP), nil
}

func textResult(text string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.TextContent{Type: "text", Text: text},
		},
	}
}

func errResult(msg string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.TextContent{Type: "text", Text: "Error: " + msg},
		},
		IsError: true,
	}
}

func structuredResult(summary string, data any) (*mcpproto.CallToolResult, error) {
	blob, err := json.Marshal(data)
	if err != nil {
		return errResult(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.TextContent{Type: "text", Text: summary},
			mcpproto.TextContent{Type: "text", Text: string(blob)},
		},
	}, nil
}
