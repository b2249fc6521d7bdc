package server

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/config"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
	versionpkg "github.com/GodSpeedAI/domainforge-lsp/src/internal/version"
	jsonrpc "github.com/GodSpeedAI/domainforge-lsp/src/server/protocol"
)

// MCPServer bridges the hover/navigation engine to the Model Context
// Protocol so agent tooling can query DomainForge documents without an
// editor session. Documents are loaded from disk on first use and
// reloaded when their content changes.
type MCPServer struct {
	engine *Server
	guard  *Guard

	mu       sync.Mutex
	versions map[string]int32
	hashes   map[string]string

	diagnostics *gocache.Cache

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMCPServer builds the bridge around a fresh engine instance.
func NewMCPServer(cfg *config.Config) (*MCPServer, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	engine, err := NewServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	ttl := time.Duration(cfg.Bridge.DiagnosticsTTLSeconds) * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	return &MCPServer{
		engine:      engine,
		guard:       NewGuard(cfg.Bridge.WorkspaceRoots),
		versions:    make(map[string]int32),
		hashes:      make(map[string]string),
		diagnostics: gocache.New(ttl, 2*ttl),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Stop cancels the serving loop.
func (m *MCPServer) Stop() {
	m.cancel()
}

// RunStdio serves MCP over stdin/stdout.
func (m *MCPServer) RunStdio() error {
	return m.Run(os.Stdin, os.Stdout)
}

// Run serves MCP over newline-delimited JSON, the MCP stdio transport
// framing.
func (m *MCPServer) Run(input io.Reader, output io.Writer) error {
	defer m.cancel()

	scanner := bufio.NewScanner(input)
	// 64KB initial, 4MB max: hover JSON plus markdown can be large
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	common.MCPLogger.Info("domainforge MCP bridge listening on stdio")

	for scanner.Scan() {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		var req jsonrpc.Message
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			common.MCPLogger.Error("decode error: %v", err)
			continue
		}

		resp := m.handleRequest(&req)
		if resp == nil {
			continue
		}
		data, err := json.Marshal(resp)
		if err != nil {
			common.MCPLogger.Error("encode error: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(output, "%s\n", data); err != nil {
			common.MCPLogger.Error("write error: %v", err)
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input scan error: %w", err)
	}
	return nil
}

func (m *MCPServer) handleRequest(req *jsonrpc.Message) *jsonrpc.Message {
	if req.JSONRPC != jsonrpc.JSONRPCVersion {
		return errorResponse(req.ID, jsonrpc.NewRPCError(jsonrpc.InvalidRequest, "jsonrpc must be 2.0", nil))
	}

	switch req.Method {
	case "initialize":
		return successResponse(req.ID, m.initializeResult())
	case "notifications/initialized", "initialized":
		return nil
	case "tools/list":
		return successResponse(req.ID, map[string]interface{}{"tools": toolDefinitions()})
	case "tools/call":
		return m.delegateToolCall(req)
	default:
		return errorResponse(req.ID, jsonrpc.NewMethodNotFoundError(req.Method))
	}
}

func (m *MCPServer) initializeResult() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": "2025-06-18",
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": false,
			},
		},
		"serverInfo": map[string]interface{}{
			"name":    "domainforge-lsp-mcp",
			"version": versionpkg.Version,
			"title":   "DomainForge MCP Bridge",
		},
	}
}

func successResponse(id interface{}, result interface{}) *jsonrpc.Message {
	return &jsonrpc.Message{JSONRPC: jsonrpc.JSONRPCVersion, ID: id, Result: result}
}

func errorResponse(id interface{}, rpcErr *jsonrpc.RPCError) *jsonrpc.Message {
	return &jsonrpc.Message{JSONRPC: jsonrpc.JSONRPCVersion, ID: id, Error: rpcErr}
}

// ensureDocument loads the file into the engine's document table,
// bumping the version only when the on-disk content actually changed so
// cached responses stay valid across repeated tool calls. The path must
// canonicalize to a location inside the configured workspace roots;
// everything after the check operates on the canonical path, so
// symlinked spellings of the same file share one document entry.
func (m *MCPServer) ensureDocument(filePath string) (protocol.DocumentURI, error) {
	if !common.IsDomainForgeDocument(filePath) {
		return "", fmt.Errorf("not a DomainForge document: %s", filePath)
	}
	resolved, err := m.guard.CheckPath(filePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", resolved, err)
	}
	text := string(data)
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	uri := protocol.DocumentURI(common.FilePathToURI(resolved))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[resolved] == digest {
		return uri, nil
	}
	m.versions[resolved]++
	version := m.versions[resolved]
	m.hashes[resolved] = digest
	m.engine.Documents().Update(uri, text, version)
	m.diagnostics.Delete(string(uri))
	common.MCPLogger.Debug("loaded %s (version %d)", resolved, version)
	return uri, nil
}
