package server

import (
	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/internal/version"
)

// ServerCapabilities advertises the supported feature set: full-text
// sync, hover, definition, references, and completion.
func ServerCapabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{IncludeText: false},
		},
		HoverProvider:      true,
		DefinitionProvider: true,
		ReferencesProvider: true,
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{"@", `"`},
		},
	}
}

// InitializeResult pairs the capabilities with the server identity.
func InitializeResult() protocol.InitializeResult {
	return protocol.InitializeResult{
		Capabilities: ServerCapabilities(),
		ServerInfo: &protocol.ServerInfo{
			Name:    "domainforge-lsp",
			Version: version.Version,
		},
	}
}
