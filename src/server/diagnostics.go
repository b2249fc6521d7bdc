package server

import (
	stderrors "errors"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/parser"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/documents"
)

const diagnosticSource = "domainforge"

// DiagnosticsForSnapshot translates the snapshot's parse failure, if
// any, into LSP diagnostics. A clean snapshot returns an empty list so
// publishing it clears earlier diagnostics on the client.
func DiagnosticsForSnapshot(snap *documents.Snapshot) []protocol.Diagnostic {
	if snap.ParseErr == nil {
		return []protocol.Diagnostic{}
	}

	offset := 0
	message := snap.ParseErr.Error()
	var parseErr *parser.ParseError
	var lexErr *parser.LexError
	switch {
	case stderrors.As(snap.ParseErr, &parseErr):
		offset = parseErr.Offset
		message = parseErr.Message
	case stderrors.As(snap.ParseErr, &lexErr):
		offset = lexErr.Offset
		message = lexErr.Message
	}

	start := snap.LineIndex.PositionOf(offset)
	end := snap.LineIndex.PositionOf(offset + 1)
	return []protocol.Diagnostic{
		{
			Range:    protocol.Range{Start: start, End: end},
			Severity: protocol.DiagnosticSeverityError,
			Source:   diagnosticSource,
			Message:  message,
		},
	}
}
