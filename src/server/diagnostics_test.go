package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/server/documents"
)

func TestDiagnosticsForCleanSnapshot(t *testing.T) {
	m := documents.NewManager()
	snap := m.Open("file:///ok.sea", "Entity \"Warehouse\"\n", 1)

	diags := DiagnosticsForSnapshot(snap)
	require.NotNil(t, diags)
	assert.Empty(t, diags)
}

func TestDiagnosticsForParseError(t *testing.T) {
	m := documents.NewManager()
	snap := m.Open("file:///bad.sea", "Entity \"Warehouse\"\nEntity\n", 1)

	diags := DiagnosticsForSnapshot(snap)
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, protocol.DiagnosticSeverityError, d.Severity)
	assert.Equal(t, "domainforge", d.Source)
	assert.NotEmpty(t, d.Message)
	// the error points into the second line
	assert.Equal(t, uint32(1), d.Range.Start.Line)
}

func TestDiagnosticsForLexError(t *testing.T) {
	m := documents.NewManager()
	snap := m.Open("file:///lex.sea", "Entity \"unterminated\n", 1)

	diags := DiagnosticsForSnapshot(snap)
	require.Len(t, diags, 1)
	assert.Equal(t, uint32(0), diags[0].Range.Start.Line)
}
