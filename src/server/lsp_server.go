// Package server hosts the LSP session: request dispatch, document
// lifecycle, hover/definition/references/completion, diagnostics
// publishing, and the shared engine the MCP bridge reuses.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/config"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/types"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/cache"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/documents"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/hover"
	jsonrpc "github.com/GodSpeedAI/domainforge-lsp/src/server/protocol"
)

// MethodHoverPlus is the extension request returning the raw hover
// model alongside optional markdown.
const MethodHoverPlus = "domainforge/hoverPlus"

type hoverCacheEntry struct {
	model    *hover.Model
	markdown string
}

// Server is one LSP session over a JSON-RPC stream.
type Server struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configHash string

	docs       *documents.Manager
	hoverCache *cache.ResponseCache[hoverCacheEntry]

	stream   *jsonrpc.Stream
	shutdown bool
	cancel   context.CancelFunc
}

// NewServer builds a server around the given configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	hoverCache, err := cache.NewResponseCache[hoverCacheEntry](cfg.Cache.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create hover cache: %w", err)
	}
	return &Server{
		cfg:        cfg,
		configHash: cfg.Hash(),
		docs:       documents.NewManager(),
		hoverCache: hoverCache,
	}, nil
}

// RunStdio serves one LSP session over stdin/stdout. Blocks until the
// client disconnects or sends exit.
func (s *Server) RunStdio(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.stream = jsonrpc.NewStream(os.Stdin, os.Stdout)
	common.LSPLogger.Info("domainforge-lsp listening on stdio")
	err := s.stream.Serve(ctx, s)
	if err == context.Canceled {
		return nil
	}
	return err
}

// HandleRequest implements jsonrpc.Handler.
func (s *Server) HandleRequest(ctx context.Context, method string, id interface{}, params json.RawMessage) (interface{}, *jsonrpc.RPCError) {
	switch method {
	case types.MethodInitialize:
		return InitializeResult(), nil

	case types.MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil

	case types.MethodTextDocumentHover:
		var p protocol.HoverParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error())
		}
		return s.handleHover(p)

	case types.MethodTextDocumentDefinition:
		var p protocol.DefinitionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error())
		}
		return s.handleDefinition(p)

	case types.MethodTextDocumentReferences:
		var p protocol.ReferenceParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error())
		}
		return s.handleReferences(p)

	case types.MethodTextDocumentCompletion:
		var p protocol.CompletionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error())
		}
		return s.handleCompletion(p)

	case MethodHoverPlus:
		var p HoverPlusParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error())
		}
		return s.handleHoverPlus(p)

	default:
		return nil, jsonrpc.NewMethodNotFoundError(method)
	}
}

// HandleNotification implements jsonrpc.Handler.
func (s *Server) HandleNotification(ctx context.Context, method string, params json.RawMessage) error {
	switch method {
	case types.MethodInitialized:
		common.LSPLogger.Info("client initialized")
		return nil

	case types.MethodExit:
		if s.cancel != nil {
			s.cancel()
		}
		return nil

	case types.MethodTextDocumentDidOpen:
		var p protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		snap := s.docs.Open(p.TextDocument.URI, p.TextDocument.Text, p.TextDocument.Version)
		s.publishDiagnostics(snap)
		return nil

	case types.MethodTextDocumentDidChange:
		var p protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		if len(p.ContentChanges) == 0 {
			return nil
		}
		// full sync: the last change carries the complete text
		text := p.ContentChanges[len(p.ContentChanges)-1].Text
		snap := s.docs.Update(p.TextDocument.URI, text, p.TextDocument.Version)
		s.publishDiagnostics(snap)
		return nil

	case types.MethodTextDocumentDidSave:
		var p protocol.DidSaveTextDocumentParams
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		if snap, err := s.docs.Get(p.TextDocument.URI); err == nil {
			s.publishDiagnostics(snap)
		}
		return nil

	case types.MethodTextDocumentDidClose:
		var p protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		s.docs.Close(p.TextDocument.URI)
		s.hoverCache.InvalidateDocument(string(p.TextDocument.URI))
		s.notify(types.MethodTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         p.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		})
		return nil

	case types.MethodWorkspaceDidChangeConfiguration:
		var p protocol.DidChangeConfigurationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return err
		}
		s.applyConfiguration(p.Settings)
		return nil

	default:
		common.LSPLogger.Debug("ignoring notification %s", method)
		return nil
	}
}

// HoverPlusParams is the extension request payload.
type HoverPlusParams struct {
	TextDocument          protocol.TextDocumentIdentifier `json:"text_document"`
	Position              protocol.Position               `json:"position"`
	IncludeMarkdown       bool                            `json:"include_markdown"`
	IncludeProjectSignals bool                            `json:"include_project_signals"`
	MaxDetailLevel        string                          `json:"max_detail_level,omitempty"`
}

// HoverPlusResponse carries the raw model with optional markdown.
type HoverPlusResponse struct {
	Model    *hover.Model `json:"model"`
	Markdown string       `json:"markdown,omitempty"`
}

func (s *Server) handleHover(p protocol.HoverParams) (interface{}, *jsonrpc.RPCError) {
	entry, _, err := s.hoverEntry(p.TextDocument.URI, p.Position, s.defaultDetail(), "markdown")
	if err != nil {
		common.LSPLogger.Debug("hover failed: %v", err)
		return nil, nil
	}
	if entry.model == nil {
		return nil, nil
	}
	start, end := entry.model.Symbol.Range.Start, entry.model.Symbol.Range.End
	return protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: entry.markdown,
		},
		Range: &protocol.Range{
			Start: protocol.Position{Line: start.Line, Character: start.Character},
			End:   protocol.Position{Line: end.Line, Character: end.Character},
		},
	}, nil
}

func (s *Server) handleHoverPlus(p HoverPlusParams) (interface{}, *jsonrpc.RPCError) {
	detail := s.defaultDetail()
	if p.MaxDetailLevel != "" {
		detail = hover.ParseDetailLevel(p.MaxDetailLevel)
	}
	entry, _, err := s.hoverEntry(p.TextDocument.URI, p.Position, detail, "plus")
	if err != nil {
		common.LSPLogger.Debug("hoverPlus failed: %v", err)
		return nil, nil
	}
	if entry.model == nil {
		return nil, nil
	}
	resp := HoverPlusResponse{Model: entry.model}
	if p.IncludeMarkdown || s.includeMarkdownByDefault() {
		resp.Markdown = entry.markdown
	}
	return resp, nil
}

// hoverEntry builds (or retrieves) the hover model and markdown for one
// position. The cache key bakes in document version, detail, and view,
// so any edit or setting change misses.
func (s *Server) hoverEntry(uri protocol.DocumentURI, pos protocol.Position, detail hover.DetailLevel, view string) (hoverCacheEntry, *documents.Snapshot, error) {
	snap, err := s.docs.Get(uri)
	if err != nil {
		return hoverCacheEntry{}, nil, err
	}

	key := cache.Key{
		URI:       string(uri),
		Version:   snap.Version,
		Line:      pos.Line,
		Character: pos.Character,
		Detail:    detail.String(),
		View:      view,
	}
	if entry, ok := s.hoverCache.Get(key); ok {
		return entry, snap, nil
	}

	model := hover.Build(hover.BuildInput{
		URI:             uri,
		DocumentVersion: snap.Version,
		Position:        pos,
		ConfigHash:      s.currentConfigHash(),
		Detail:          detail,
		LineIndex:       snap.LineIndex,
		Index:           snap.Index,
		Graph:           snap.Graph,
	})

	entry := hoverCacheEntry{model: model}
	if model != nil {
		rendered := hover.RenderMarkdown(model)
		entry.markdown = rendered.Markdown
	}
	s.hoverCache.Put(key, entry)
	return entry, snap, nil
}

func (s *Server) handleDefinition(p protocol.DefinitionParams) (interface{}, *jsonrpc.RPCError) {
	snap, err := s.docs.Get(p.TextDocument.URI)
	if err != nil {
		common.LSPLogger.Debug("definition failed: %v", err)
		return nil, nil
	}
	loc := GotoDefinition(snap.URI, snap.LineIndex, p.Position, snap.Index)
	if loc == nil {
		return nil, nil
	}
	return []protocol.Location{*loc}, nil
}

func (s *Server) handleReferences(p protocol.ReferenceParams) (interface{}, *jsonrpc.RPCError) {
	snap, err := s.docs.Get(p.TextDocument.URI)
	if err != nil {
		common.LSPLogger.Debug("references failed: %v", err)
		return []protocol.Location{}, nil
	}
	refs := FindReferences(snap.URI, snap.LineIndex, p.Position, snap.Index, p.Context.IncludeDeclaration)
	if refs == nil {
		return []protocol.Location{}, nil
	}
	return refs, nil
}

func (s *Server) handleCompletion(p protocol.CompletionParams) (interface{}, *jsonrpc.RPCError) {
	snap, err := s.docs.Get(p.TextDocument.URI)
	if err != nil {
		common.LSPLogger.Debug("completion failed: %v", err)
		return nil, nil
	}
	items := Completion(snap.Text, snap.LineIndex, p.Position, snap.Graph, snap.Index)
	if items == nil {
		items = []protocol.CompletionItem{}
	}
	return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (s *Server) publishDiagnostics(snap *documents.Snapshot) {
	s.notify(types.MethodTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         snap.URI,
		Version:     uint32(snap.Version),
		Diagnostics: DiagnosticsForSnapshot(snap),
	})
}

func (s *Server) notify(method string, params interface{}) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Notify(method, params); err != nil {
		common.LSPLogger.Error("failed to send %s: %v", method, err)
	}
}

// configurationOverlay is the shape of workspace settings under the
// "domainforge" key.
type configurationOverlay struct {
	LogLevel        *string `json:"logLevel"`
	DetailLevel     *string `json:"detailLevel"`
	IncludeMarkdown *bool   `json:"includeMarkdown"`
}

type configurationSettings struct {
	DomainForge *configurationOverlay `json:"domainforge"`
}

// applyConfiguration merges workspace settings into the active config,
// recomputes the config hash, and purges hover responses built against
// the old settings.
func (s *Server) applyConfiguration(settings interface{}) {
	raw, err := json.Marshal(settings)
	if err != nil {
		common.LSPLogger.Warn("unusable configuration settings: %v", err)
		return
	}
	var parsed configurationSettings
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.DomainForge == nil {
		common.LSPLogger.Debug("no domainforge section in configuration update")
		return
	}
	overlay := parsed.DomainForge

	s.mu.Lock()
	if overlay.LogLevel != nil {
		s.cfg.LogLevel = *overlay.LogLevel
	}
	if overlay.DetailLevel != nil {
		s.cfg.Hover.DetailLevel = *overlay.DetailLevel
	}
	if overlay.IncludeMarkdown != nil {
		s.cfg.Hover.IncludeMarkdown = *overlay.IncludeMarkdown
	}
	if err := s.cfg.Validate(); err != nil {
		common.LSPLogger.Warn("rejected configuration update: %v", err)
		s.mu.Unlock()
		return
	}
	common.SetGlobalLogLevel(common.ParseLogLevel(s.cfg.LogLevel))
	s.configHash = s.cfg.Hash()
	s.mu.Unlock()

	s.hoverCache.Purge()
	common.LSPLogger.Info("configuration updated, hover cache purged")
}

func (s *Server) currentConfigHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configHash
}

func (s *Server) defaultDetail() hover.DetailLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hover.ParseDetailLevel(s.cfg.Hover.DetailLevel)
}

func (s *Server) includeMarkdownByDefault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Hover.IncludeMarkdown
}

// Documents exposes the document manager for the MCP bridge.
func (s *Server) Documents() *documents.Manager { return s.docs }
