package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/storefront/internal/accessibility"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/preview"
)

const hero = `component Hero {
  render {
    <h1 className="text-xl">Hi</h1>
  }
}
`

func newServer(t *testing.T) (*Server, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hero.component")
	require.NoError(t, os.WriteFile(path, []byte(hero), 0o600))

	src, err := editor.ReadFile(path)
	require.NoError(t, err)

	opts := editor.Options{
		Source: src,
		Renderer: preview.RendererFunc(func(context.Context, string, preview.Props) (string, error) {
			return `<html lang="en"><head><title>Hero</title></head><body><h1>Hi</h1><img src="a.png"></body></html>`, nil
		}),
	}
	opts.Preview.Debounce = time.Hour

	session, err := editor.New("mcp", opts)
	require.NoError(t, err)
	t.Cleanup(session.Close)

	return New(session, path, Options{Version: "test"}), path
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func fileContent(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestToolNames(t *testing.T) {
	s, _ := newServer(t)

	names := s.ToolNames()
	for _, want := range []string{
		"list_sections", "get_source", "apply_tool", "delete_section",
		"move_section", "insert_template", "audit_preview", "undo", "redo",
	} {
		assert.Contains(t, names, want)
	}
}

func TestApplyToolWritesFile(t *testing.T) {
	s, path := newServer(t)
	ctx := context.Background()

	res, err := s.handleApplyTool(ctx, call(map[string]any{
		"tool":   "font-size",
		"params": map[string]any{"direction": "increase"},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "text-2xl")
	assert.Contains(t, fileContent(t, path), "text-2xl")

	res, err = s.handleUndo(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, hero, text(t, res))
	assert.Equal(t, hero, fileContent(t, path))

	res, err = s.handleRedo(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, fileContent(t, path), "text-2xl")
}

func TestUserErrorsAreToolErrors(t *testing.T) {
	s, path := newServer(t)
	ctx := context.Background()

	res, err := s.handleUndo(ctx, call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Nothing to undo")

	res, err = s.handleApplyTool(ctx, call(map[string]any{"tool": "teleport"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleDeleteSection(ctx, call(map[string]any{"name": "footer"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	// Nothing was written.
	assert.Equal(t, hero, fileContent(t, path))

	_, err = s.handleMoveSection(ctx, call(map[string]any{"name": "render"}))
	assert.Error(t, err)
}

func TestSectionTools(t *testing.T) {
	s, path := newServer(t)
	ctx := context.Background()

	res, err := s.handleInsertTemplate(ctx, call(map[string]any{"template": "testimonials"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, fileContent(t, path), "testimonials")

	res, err = s.handleListSections(ctx, call(nil))
	require.NoError(t, err)

	var sections []sectionInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &sections))
	names := make([]string, 0, len(sections))
	for _, sec := range sections {
		names = append(names, sec.Name)
		assert.True(t, sec.Closed)
	}
	assert.Contains(t, names, "render")
	assert.Contains(t, names, "testimonials")

	res, err = s.handleDeleteSection(ctx, call(map[string]any{"name": "testimonials"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.NotContains(t, fileContent(t, path), "testimonials")

	res, err = s.handleGetSource(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, fileContent(t, path), text(t, res))
}

func TestAuditPreview(t *testing.T) {
	s, _ := newServer(t)

	res, err := s.handleAuditPreview(context.Background(), call(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var report accessibility.Report
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &report))
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "image-alt", report.Violations[0].Rule)
}
