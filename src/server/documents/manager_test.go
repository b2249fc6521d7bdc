package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/internal/errors"
)

const docURI = protocol.DocumentURI("file:///warehouse.sea")

func TestOpenBuildsSnapshot(t *testing.T) {
	m := NewManager()

	snap := m.Open(docURI, "Entity \"Warehouse\"\n", 1)
	require.NotNil(t, snap)
	assert.Equal(t, docURI, snap.URI)
	assert.Equal(t, int32(1), snap.Version)
	assert.NoError(t, snap.ParseErr)
	require.NotNil(t, snap.Graph)
	assert.Len(t, snap.Graph.AllEntities(), 1)
	require.NotNil(t, snap.Index)
	assert.Len(t, snap.Index.Occurrences, 1)

	got, err := m.Get(docURI)
	require.NoError(t, err)
	assert.Same(t, snap, got)
}

func TestUpdateReplacesSnapshot(t *testing.T) {
	m := NewManager()
	m.Open(docURI, "Entity \"Warehouse\"\n", 1)

	snap := m.Update(docURI, "Entity \"Warehouse\"\nEntity \"Factory\"\n", 2)
	assert.Equal(t, int32(2), snap.Version)
	assert.Len(t, snap.Graph.AllEntities(), 2)
}

func TestUpdateIgnoresStaleVersion(t *testing.T) {
	m := NewManager()
	current := m.Open(docURI, "Entity \"Warehouse\"\n", 5)

	snap := m.Update(docURI, "Entity \"Other\"\n", 3)
	assert.Same(t, current, snap)

	got, err := m.Get(docURI)
	require.NoError(t, err)
	assert.Equal(t, int32(5), got.Version)
}

func TestUpdateUnopenedDocumentOpensIt(t *testing.T) {
	m := NewManager()

	snap := m.Update(docURI, "Entity \"Warehouse\"\n", 1)
	require.NotNil(t, snap)
	_, err := m.Get(docURI)
	assert.NoError(t, err)
}

func TestParseFailureKeepsSnapshotUsable(t *testing.T) {
	m := NewManager()

	snap := m.Open(docURI, "Entity\nEntity \"Factory\"\n", 1)
	require.Error(t, snap.ParseErr)
	assert.Nil(t, snap.Graph)
	require.NotNil(t, snap.LineIndex)
	require.NotNil(t, snap.Index)
	assert.Empty(t, snap.Index.Occurrences)

	// line math still works against the raw text
	offset, ok := snap.LineIndex.OffsetOf(protocol.Position{Line: 1, Character: 0})
	require.True(t, ok)
	assert.Equal(t, 7, offset)
}

func TestCloseForgetsDocument(t *testing.T) {
	m := NewManager()
	m.Open(docURI, "Entity \"Warehouse\"\n", 1)
	m.Close(docURI)

	_, err := m.Get(docURI)
	require.Error(t, err)
	assert.True(t, errors.IsDocumentNotFoundError(err))
	assert.Contains(t, err.Error(), string(docURI))

	// closing again is a no-op
	m.Close(docURI)
}

func TestURIs(t *testing.T) {
	m := NewManager()
	m.Open("file:///a.sea", "Entity \"A\"\n", 1)
	m.Open("file:///b.sea", "Entity \"B\"\n", 1)

	uris := m.URIs()
	assert.ElementsMatch(t, []protocol.DocumentURI{"file:///a.sea", "file:///b.sea"}, uris)
}
