// Package mcptools exposes an editor session over the Model Context Protocol
// so AI agents can use the same direct manipulation tools as the editor page.
// Every accepted edit is written back to the component file.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/templates"
	"github.com/conneroisu/storefront/internal/tools"
)

// Options configures a Server.
type Options struct {
	Catalog *templates.Catalog
	Version string
	Logger  logging.Logger
}

// Server is the MCP server for one component file.
type Server struct {
	mcp     *server.MCPServer
	session *editor.Session
	path    string
	catalog *templates.Catalog
	logger  logging.Logger

	// names of the registered tools, in registration order
	names []string

	writeMu sync.Mutex
}

// New creates a server editing path through session.
func New(session *editor.Session, path string, opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = templates.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		session: session,
		path:    path,
		catalog: opts.Catalog,
		logger:  opts.Logger.WithComponent("mcp"),
	}
	s.mcp = server.NewMCPServer(
		"storefront-mcp",
		opts.Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info(context.Background(), "Starting MCP stdio server", "file", s.path)
	return server.ServeStdio(s.mcp)
}

// ToolNames returns the registered tool names.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.names...)
}

func (s *Server) add(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.names = append(s.names, tool.Name)
	s.mcp.AddTool(tool, handler)
}

func (s *Server) registerTools() {
	toolNames := make([]string, 0)
	for _, t := range tools.All() {
		toolNames = append(toolNames, t.Name)
	}
	templateIDs := make([]string, 0)
	for _, t := range s.catalog.All() {
		templateIDs = append(templateIDs, t.ID)
	}
	sort.Strings(templateIDs)

	s.add(mcp.NewTool("list_sections",
		mcp.WithDescription("List the sections of the component in source order"),
	), s.handleListSections)

	s.add(mcp.NewTool("get_source",
		mcp.WithDescription("Return the full component source"),
	), s.handleGetSource)

	s.add(mcp.NewTool("list_tools",
		mcp.WithDescription("Describe the direct manipulation tools and their parameters"),
	), s.handleListTools)

	s.add(mcp.NewTool("apply_tool",
		mcp.WithDescription("Run a direct manipulation tool over the render section"),
		mcp.WithString("tool",
			mcp.Description("Name of the tool"),
			mcp.Required(),
			mcp.Enum(toolNames...),
		),
		mcp.WithObject("params",
			mcp.Description("Tool parameters as string values, see list_tools"),
		),
	), s.handleApplyTool)

	s.add(mcp.NewTool("delete_section",
		mcp.WithDescription("Delete a section by name"),
		mcp.WithString("name",
			mcp.Description("Section name, e.g. hero"),
			mcp.Required(),
		),
	), s.handleDeleteSection)

	s.add(mcp.NewTool("move_section",
		mcp.WithDescription("Swap a section with its neighbor"),
		mcp.WithString("name",
			mcp.Description("Section name"),
			mcp.Required(),
		),
		mcp.WithString("direction",
			mcp.Description("up or down"),
			mcp.Required(),
			mcp.Enum(string(editor.Up), string(editor.Down)),
		),
	), s.handleMoveSection)

	s.add(mcp.NewTool("insert_template",
		mcp.WithDescription("Insert a section template from the catalog"),
		mcp.WithString("template",
			mcp.Description("Template id"),
			mcp.Required(),
			mcp.Enum(templateIDs...),
		),
	), s.handleInsertTemplate)

	s.add(mcp.NewTool("audit_preview",
		mcp.WithDescription("Render the component and check the result for accessibility problems"),
	), s.handleAuditPreview)

	s.add(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last edit"),
	), s.handleUndo)

	s.add(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone edit"),
	), s.handleRedo)
}

type sectionInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Closed bool   `json:"closed"`
}

func (s *Server) handleListSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sections := s.session.Sections()
	out := make([]sectionInfo, 0, len(sections))
	for _, sec := range sections {
		out = append(out, sectionInfo{
			Name:   sec.Name,
			Type:   string(sec.Type),
			Start:  sec.Start,
			End:    sec.End,
			Closed: sec.Closed,
		})
	}

	return jsonResult(out)
}

func (s *Server) handleGetSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(s.session.Source()), nil
}

func (s *Server) handleListTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(tools.All())
}

func (s *Server) handleAuditPreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.session.Render(ctx); err != nil {
		return mcp.NewToolResultError(apperrors.DetailOf(err).Message), nil
	}
	report, err := s.session.Audit(ctx)
	if err != nil {
		return mcp.NewToolResultError(apperrors.DetailOf(err).Message), nil
	}

	return jsonResult(report)
}

func (s *Server) handleApplyTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("tool", "")
	if name == "" {
		return nil, fmt.Errorf("tool is required")
	}

	params := tools.Params{}
	if raw, ok := req.GetArguments()["params"].(map[string]any); ok {
		for k, v := range raw {
			params[k] = fmt.Sprint(v)
		}
	}

	return s.edit(ctx, func() (string, error) {
		return s.session.ApplyTool(ctx, name, params)
	})
}

func (s *Server) handleDeleteSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	return s.edit(ctx, func() (string, error) {
		return s.session.DeleteSection(ctx, name)
	})
}

func (s *Server) handleMoveSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	dir := editor.Direction(req.GetString("direction", ""))
	if name == "" || dir == "" {
		return nil, fmt.Errorf("name and direction are required")
	}

	return s.edit(ctx, func() (string, error) {
		return s.session.MoveSection(ctx, name, dir)
	})
}

func (s *Server) handleInsertTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("template", "")
	if id == "" {
		return nil, fmt.Errorf("template is required")
	}

	return s.edit(ctx, func() (string, error) {
		return s.session.InsertTemplate(ctx, id)
	})
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.edit(ctx, func() (string, error) {
		return s.session.Undo(ctx)
	})
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.edit(ctx, func() (string, error) {
		return s.session.Redo(ctx)
	})
}

// edit runs one session edit. Rejections the user can act on come back as
// tool errors so the agent sees the message; the file is written only when
// the document changed.
func (s *Server) edit(ctx context.Context, fn func() (string, error)) (*mcp.CallToolResult, error) {
	out, err := fn()
	if err != nil {
		if apperrors.IsValidationError(err) {
			return mcp.NewToolResultError(apperrors.DetailOf(err).Message), nil
		}
		return nil, err
	}

	if err := s.write(out); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "Wrote component", "file", s.path, "bytes", len(out))

	return textResult(out), nil
}

func (s *Server) write(source string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return editor.WriteFile(s.path, source)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
