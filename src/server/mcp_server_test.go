package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodSpeedAI/domainforge-lsp/src/config"
	jsonrpc "github.com/GodSpeedAI/domainforge-lsp/src/server/protocol"
)

func newTestBridge(t *testing.T, roots ...string) *MCPServer {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Bridge.WorkspaceRoots = roots
	m, err := NewMCPServer(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func writeTestDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.sea")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mcpRequest(t *testing.T, m *MCPServer, method string, params interface{}) *jsonrpc.Message {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return m.handleRequest(&jsonrpc.Message{
		JSONRPC: jsonrpc.JSONRPCVersion,
		ID:      1,
		Method:  method,
		Params:  raw,
	})
}

func toolCall(t *testing.T, m *MCPServer, tool string, args map[string]interface{}) *jsonrpc.Message {
	t.Helper()
	rawArgs, err := json.Marshal(args)
	require.NoError(t, err)
	return mcpRequest(t, m, "tools/call", map[string]interface{}{
		"name":      tool,
		"arguments": json.RawMessage(rawArgs),
	})
}

// resultText extracts the text payload of an MCP tool result.
func resultText(t *testing.T, resp *jsonrpc.Message) string {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	content, ok := result["content"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, content, 1)
	text, ok := content[0]["text"].(string)
	require.True(t, ok)
	return text
}

func TestMCPInitialize(t *testing.T) {
	m := newTestBridge(t)

	resp := mcpRequest(t, m, "initialize", map[string]interface{}{})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2025-06-18", result["protocolVersion"])
	info := result["serverInfo"].(map[string]interface{})
	assert.Equal(t, "domainforge-lsp-mcp", info["name"])
}

func TestMCPInitializedNotificationHasNoResponse(t *testing.T) {
	m := newTestBridge(t)
	assert.Nil(t, mcpRequest(t, m, "notifications/initialized", map[string]interface{}{}))
}

func TestMCPToolsList(t *testing.T) {
	m := newTestBridge(t)

	resp := mcpRequest(t, m, "tools/list", map[string]interface{}{})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	tools := result["tools"].([]map[string]interface{})

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool["name"].(string))
		assert.NotEmpty(t, tool["description"])
		assert.NotNil(t, tool["inputSchema"])
	}
	assert.Equal(t, []string{"forge_hover", "forge_definition", "forge_references", "forge_diagnostics"}, names)
}

func TestMCPUnknownMethod(t *testing.T) {
	m := newTestBridge(t)

	resp := mcpRequest(t, m, "prompts/list", map[string]interface{}{})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.MethodNotFound, resp.Error.Code)
}

func TestMCPRejectsWrongJSONRPCVersion(t *testing.T) {
	m := newTestBridge(t)

	resp := m.handleRequest(&jsonrpc.Message{JSONRPC: "1.0", ID: 1, Method: "tools/list"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InvalidRequest, resp.Error.Code)
}

func TestForgeHoverTool(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_hover", map[string]interface{}{
		"filePath":  path,
		"line":      0,
		"character": 9,
	})
	text := resultText(t, resp)
	assert.Contains(t, text, `"schema_version": "1.0"`)
	assert.Contains(t, text, "Warehouse")
}

func TestForgeHoverToolMarkdown(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_hover", map[string]interface{}{
		"filePath":        path,
		"line":            0,
		"character":       9,
		"includeMarkdown": true,
	})
	text := resultText(t, resp)
	assert.Contains(t, text, "## Signature")
}

func TestForgeHoverNoSymbol(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\n\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_hover", map[string]interface{}{
		"filePath":  path,
		"line":      1,
		"character": 0,
	})
	assert.Equal(t, "no symbol at position", resultText(t, resp))
}

func TestForgeDefinitionTool(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\nInstance hub_1 of \"Warehouse\" {\n}\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_definition", map[string]interface{}{
		"filePath":  path,
		"line":      1,
		"character": 20,
	})
	text := resultText(t, resp)
	assert.Contains(t, text, `"line": 0`)
}

func TestForgeReferencesTool(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\nInstance hub_1 of \"Warehouse\" {\n}\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_references", map[string]interface{}{
		"filePath":           path,
		"line":               0,
		"character":          9,
		"includeDeclaration": true,
	})
	text := resultText(t, resp)
	assert.Contains(t, text, `"line": 1`)
}

func TestForgeDiagnosticsTool(t *testing.T) {
	path := writeTestDocument(t, "Entity\n")
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_diagnostics", map[string]interface{}{
		"filePath": path,
	})
	text := resultText(t, resp)
	assert.Contains(t, text, "domainforge")

	// second call is served from the diagnostics cache
	again := toolCall(t, m, "forge_diagnostics", map[string]interface{}{
		"filePath": path,
	})
	assert.Equal(t, text, resultText(t, again))
}

func TestToolCallRejectsNonSeaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Entity \"X\"\n"), 0o644))
	m := newTestBridge(t, filepath.Dir(path))

	resp := toolCall(t, m, "forge_hover", map[string]interface{}{
		"filePath":  path,
		"line":      0,
		"character": 8,
	})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InternalError, resp.Error.Code)
}

func TestToolCallUnknownTool(t *testing.T) {
	m := newTestBridge(t)

	resp := toolCall(t, m, "forge_rename", map[string]interface{}{"filePath": "x.sea"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
}

func TestEnsureDocumentBumpsVersionOnContentChange(t *testing.T) {
	path := writeTestDocument(t, "Entity \"Warehouse\"\n")
	m := newTestBridge(t, filepath.Dir(path))

	uri, err := m.ensureDocument(path)
	require.NoError(t, err)
	snap, err := m.engine.Documents().Get(uri)
	require.NoError(t, err)
	first := snap.Version

	// unchanged content keeps the version
	_, err = m.ensureDocument(path)
	require.NoError(t, err)
	snap, err = m.engine.Documents().Get(uri)
	require.NoError(t, err)
	assert.Equal(t, first, snap.Version)

	require.NoError(t, os.WriteFile(path, []byte("Entity \"Renamed\"\n"), 0o644))
	_, err = m.ensureDocument(path)
	require.NoError(t, err)
	snap, err = m.engine.Documents().Get(uri)
	require.NoError(t, err)
	assert.Equal(t, first+1, snap.Version)
	assert.Equal(t, "Renamed", snap.Graph.AllEntities()[0].Name())
}

func TestEnsureDocumentRejectsFilesOutsideWorkspaceRoots(t *testing.T) {
	root := t.TempDir()
	m := newTestBridge(t, root)

	outside := filepath.Join(t.TempDir(), "secret.sea")
	require.NoError(t, os.WriteFile(outside, []byte("Entity \"Hidden\"\n"), 0o644))

	_, err := m.ensureDocument(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace roots")
	// the denied file never reaches the engine's document table
	assert.Empty(t, m.engine.Documents().URIs())

	inside := filepath.Join(root, "doc.sea")
	require.NoError(t, os.WriteFile(inside, []byte("Entity \"Visible\"\n"), 0o644))
	_, err = m.ensureDocument(inside)
	assert.NoError(t, err)
}

func TestToolCallOutsideWorkspaceRootsIsDenied(t *testing.T) {
	m := newTestBridge(t, t.TempDir())

	outside := filepath.Join(t.TempDir(), "secret.sea")
	require.NoError(t, os.WriteFile(outside, []byte("Entity \"Hidden\"\n"), 0o644))

	resp := toolCall(t, m, "forge_hover", map[string]interface{}{
		"filePath":  outside,
		"line":      0,
		"character": 9,
	})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InternalError, resp.Error.Code)
	assert.Contains(t, fmt.Sprintf("%v", resp.Error.Data), "outside the workspace roots")
}

func TestMCPRunOverPipes(t *testing.T) {
	m := newTestBridge(t)

	input := fmt.Sprintf("%s\n%s\n",
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)

	var out bytes.Buffer
	require.NoError(t, m.Run(strings.NewReader(input), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first jsonrpc.Message
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Nil(t, first.Error)
	assert.Equal(t, float64(1), first.ID)
}
