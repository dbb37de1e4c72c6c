package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the audit tools on an MCP server. Tool calls run
// as the identity in their context, AnonymousUser when there is none.
func (a *Auditor) RegisterMCP(srv *mcp.Server) {
	a.registerAuditTool(srv)
	a.registerHistoryTool(srv)
	a.registerDetailTool(srv)
	a.registerCrawlTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool decodes the arguments into a fresh R and returns the JSON
// encoding of whatever call produces. Every failure is reported as a tool
// error, never as a protocol error.
func registerTool[R any](srv *mcp.Server, tool *mcp.Tool, call func(ctx context.Context, req *R) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, creq *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var res mcp.CallToolResult
		req := new(R)
		if len(creq.Params.Arguments) > 0 {
			if err := json.Unmarshal(creq.Params.Arguments, req); err != nil {
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		out, err := call(ctx, req)
		if err != nil {
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func mcpUser(ctx context.Context) string {
	if u := UserID(ctx); u != "" {
		return u
	}
	return AnonymousUser
}

// --- audit ---

func (a *Auditor) registerAuditTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_audit",
		Description: "Audit a web page for accessibility (WCAG 2.1/2.2, GIGW 3.0). Returns grouped issues with suggested fixes.",
		InputSchema: inputSchema(map[string]any{
			"url":          map[string]any{"type": "string", "description": "Page URL (http or https)"},
			"force_rescan": map[string]any{"type": "boolean", "description": "Bypass cached results"},
		}, []string{"url"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *AuditRequest) (any, error) {
		r.UserID = mcpUser(ctx)
		resp := a.Audit(ctx, *r)
		if resp.Status == StatusError {
			return nil, resp.Err()
		}
		return resp, nil
	})
}

// --- history ---

func (a *Auditor) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_history",
		Description: "List past audits, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit":          map[string]any{"type": "integer", "description": "Max results (default 50)"},
			"query":          map[string]any{"type": "string", "description": "Substring filter on the URL"},
			"include_cached": map[string]any{"type": "boolean", "description": "Include audits served from cache"},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, r *HistoryQuery) (any, error) {
		audits, err := a.History(ctx, mcpUser(ctx), *r)
		if err != nil {
			return nil, err
		}
		return map[string]any{"audits": audits}, nil
	})
}

// --- detail ---

type detailRequest struct {
	ID string `json:"id"`
}

func (a *Auditor) registerDetailTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_audit_detail",
		Description: "Fetch one stored audit with all of its issues.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Audit ID"},
		}, []string{"id"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *detailRequest) (any, error) {
		return a.Detail(ctx, mcpUser(ctx), r.ID)
	})
}

// --- crawl ---

func (a *Auditor) registerCrawlTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "a11y_crawl",
		Description: "Discover same-site page URLs from a start page, breadth first.",
		InputSchema: inputSchema(map[string]any{
			"url":       map[string]any{"type": "string", "description": "Start URL"},
			"max_pages": map[string]any{"type": "integer", "description": "Max URLs to return (default 50)"},
		}, []string{"url"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *crawlRequest) (any, error) {
		urls, err := a.Crawl(ctx, r.URL, r.MaxPages)
		if err != nil {
			return nil, err
		}
		return map[string]any{"urls": urls}, nil
	})
}
