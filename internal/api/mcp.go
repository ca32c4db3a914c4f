package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/query"
	"github.com/kalambet/flowmart/internal/search"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Query  *query.Engine
	Search *search.Orchestrator
}

// NewMCPServer creates an MCP server exposing catalog search to agents.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flowmart",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("flowmart: marketplace of ready-made automation workflows. Search the catalog, inspect a workflow, find related ones."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_workflows",
			mcp.WithDescription("Search the workflow catalog by text and tag, or by natural-language intent when ai is true."),
			mcp.WithString("query", mcp.Description("Free-text search")),
			mcp.WithString("tag", mcp.Description("Only workflows carrying this tag")),
			mcp.WithBoolean("ai", mcp.Description("Interpret query with the AI search backend")),
			mcp.WithNumber("page", mcp.Description("1-indexed page (default 1)")),
			mcp.WithNumber("limit", mcp.Description("Page size (default 10, max 100)")),
		),
		mcpSearchWorkflows(deps),
	)

	s.AddTool(
		mcp.NewTool("get_workflow",
			mcp.WithDescription("Return one workflow with its full markdown content."),
			mcp.WithString("id", mcp.Description("Workflow id"), mcp.Required()),
		),
		mcpGetWorkflow(deps),
	)

	s.AddTool(
		mcp.NewTool("related_workflows",
			mcp.WithDescription("Return workflows related to the given one."),
			mcp.WithString("id", mcp.Description("Workflow id"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 3)")),
		),
		mcpRelatedWorkflows(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://tags",
			"Catalog Tags",
			mcp.WithResourceDescription("Distinct workflow tags in catalog order"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTags(deps),
	)

	return s
}

func mcpSearchWorkflows(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Search.Resolve(ctx, search.Request{
			Query: req.GetString("query", ""),
			Tag:   req.GetString("tag", ""),
			UseAI: req.GetBool("ai", false),
			Page:  req.GetInt("page", 0),
			Limit: req.GetInt("limit", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpGetWorkflow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		wf, err := deps.Query.Get(ctx, id)
		if errors.Is(err, query.ErrNotFound) {
			return mcpError(fmt.Sprintf("workflow %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		return mcpJSON(wf)
	}
}

func mcpRelatedWorkflows(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		limit := req.GetInt("limit", query.DefaultRelated)
		if limit > query.MaxLimit {
			limit = query.MaxLimit
		}
		related, err := deps.Query.Related(ctx, id, limit)
		if errors.Is(err, query.ErrNotFound) {
			return mcpError(fmt.Sprintf("workflow %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		summaries := make([]catalog.Summary, len(related))
		for i, w := range related {
			summaries[i] = w.Summarize()
		}
		return mcpJSON(summaries)
	}
}

func mcpResourceTags(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Query.Tags())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
