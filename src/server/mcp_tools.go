package server

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/server/hover"
	jsonrpc "github.com/GodSpeedAI/domainforge-lsp/src/server/protocol"
)

// toolDefinitions lists the bridge's tool surface. Required parameters
// come first in each schema via raw JSON so clients render them in a
// stable order.
func toolDefinitions() []map[string]interface{} {
	positionSchema := func(extra string) json.RawMessage {
		return json.RawMessage(`{
        "type": "object",
        "properties": {
            "filePath": {
                "type": "string",
                "description": "Absolute path to a .sea document"
            },
            "line": {
                "type": "integer",
                "description": "Zero-based line number"
            },
            "character": {
                "type": "integer",
                "description": "Zero-based character offset within the line"
            }` + extra + `
        },
        "required": ["filePath", "line", "character"]
    }`)
	}

	return []map[string]interface{}{
		{
			"name":        "forge_hover",
			"description": "Hover content for the symbol at a position: identity, facts, related symbols, and markdown.",
			"inputSchema": positionSchema(`,
            "detailLevel": {
                "type": "string",
                "enum": ["core", "standard", "deep"],
                "description": "How much derived detail to compute (default: standard)"
            },
            "includeMarkdown": {
                "type": "boolean",
                "description": "Return rendered markdown instead of the raw hover model"
            }`),
		},
		{
			"name":        "forge_definition",
			"description": "Location of the declaration for the symbol at a position.",
			"inputSchema": positionSchema(""),
		},
		{
			"name":        "forge_references",
			"description": "All references to the symbol at a position.",
			"inputSchema": positionSchema(`,
            "includeDeclaration": {
                "type": "boolean",
                "description": "Include the declaration itself in the results"
            }`),
		},
		{
			"name":        "forge_diagnostics",
			"description": "Parse diagnostics for a document. Results are cached briefly.",
			"inputSchema": json.RawMessage(`{
        "type": "object",
        "properties": {
            "filePath": {
                "type": "string",
                "description": "Absolute path to a .sea document"
            }
        },
        "required": ["filePath"]
    }`),
		},
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type positionArgs struct {
	FilePath           string `json:"filePath"`
	Line               uint32 `json:"line"`
	Character          uint32 `json:"character"`
	DetailLevel        string `json:"detailLevel"`
	IncludeMarkdown    *bool  `json:"includeMarkdown"`
	IncludeDeclaration bool   `json:"includeDeclaration"`
}

func (m *MCPServer) delegateToolCall(req *jsonrpc.Message) *jsonrpc.Message {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, jsonrpc.NewInvalidParamsError(err.Error()))
	}
	if params.Name == "" {
		return errorResponse(req.ID, jsonrpc.NewInvalidParamsError("missing required parameter: name"))
	}
	if err := m.guard.CheckRateLimit(params.Name); err != nil {
		return errorResponse(req.ID, jsonrpc.NewInternalError(err.Error()))
	}

	var result interface{}
	var err error
	switch params.Name {
	case "forge_hover":
		result, err = m.handleForgeHover(params.Arguments)
	case "forge_definition":
		result, err = m.handleForgeDefinition(params.Arguments)
	case "forge_references":
		result, err = m.handleForgeReferences(params.Arguments)
	case "forge_diagnostics":
		result, err = m.handleForgeDiagnostics(params.Arguments)
	default:
		return errorResponse(req.ID, jsonrpc.NewMethodNotFoundError(fmt.Sprintf("tool not found: %s", params.Name)))
	}

	if err != nil {
		return errorResponse(req.ID, jsonrpc.NewInternalError(err.Error()))
	}
	return successResponse(req.ID, result)
}

func decodePositionArgs(arguments json.RawMessage) (positionArgs, error) {
	var args positionArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.FilePath == "" {
		return args, fmt.Errorf("filePath is required")
	}
	return args, nil
}

// textContent wraps a string as an MCP tool result.
func textContent(text string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
}

func jsonContent(value interface{}) (map[string]interface{}, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, err
	}
	return textContent(string(data)), nil
}

func (m *MCPServer) handleForgeHover(arguments json.RawMessage) (interface{}, error) {
	args, err := decodePositionArgs(arguments)
	if err != nil {
		return nil, err
	}
	uri, err := m.ensureDocument(args.FilePath)
	if err != nil {
		return nil, err
	}

	detail := m.engine.defaultDetail()
	if args.DetailLevel != "" {
		detail = hover.ParseDetailLevel(args.DetailLevel)
	}
	pos := protocol.Position{Line: args.Line, Character: args.Character}
	entry, _, err := m.engine.hoverEntry(uri, pos, detail, "mcp")
	if err != nil {
		return nil, err
	}
	if entry.model == nil {
		return textContent("no symbol at position"), nil
	}
	if args.IncludeMarkdown != nil && *args.IncludeMarkdown {
		return textContent(entry.markdown), nil
	}
	return jsonContent(entry.model)
}

func (m *MCPServer) handleForgeDefinition(arguments json.RawMessage) (interface{}, error) {
	args, err := decodePositionArgs(arguments)
	if err != nil {
		return nil, err
	}
	uri, err := m.ensureDocument(args.FilePath)
	if err != nil {
		return nil, err
	}
	snap, err := m.engine.Documents().Get(uri)
	if err != nil {
		return nil, err
	}
	pos := protocol.Position{Line: args.Line, Character: args.Character}
	loc := GotoDefinition(snap.URI, snap.LineIndex, pos, snap.Index)
	if loc == nil {
		return textContent("no definition found"), nil
	}
	return jsonContent(loc)
}

func (m *MCPServer) handleForgeReferences(arguments json.RawMessage) (interface{}, error) {
	args, err := decodePositionArgs(arguments)
	if err != nil {
		return nil, err
	}
	uri, err := m.ensureDocument(args.FilePath)
	if err != nil {
		return nil, err
	}
	snap, err := m.engine.Documents().Get(uri)
	if err != nil {
		return nil, err
	}
	pos := protocol.Position{Line: args.Line, Character: args.Character}
	refs := FindReferences(snap.URI, snap.LineIndex, pos, snap.Index, args.IncludeDeclaration)
	if len(refs) == 0 {
		return textContent("no references found"), nil
	}
	return jsonContent(refs)
}

func (m *MCPServer) handleForgeDiagnostics(arguments json.RawMessage) (interface{}, error) {
	args, err := decodePositionArgs(arguments)
	if err != nil {
		return nil, err
	}
	uri, err := m.ensureDocument(args.FilePath)
	if err != nil {
		return nil, err
	}

	if cached, ok := m.diagnostics.Get(string(uri)); ok {
		return jsonContent(cached)
	}
	snap, err := m.engine.Documents().Get(uri)
	if err != nil {
		return nil, err
	}
	diags := DiagnosticsForSnapshot(snap)
	m.diagnostics.SetDefault(string(uri), diags)
	return jsonContent(diags)
}
