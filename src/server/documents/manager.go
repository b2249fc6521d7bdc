// Package documents tracks open DomainForge documents and the derived
// snapshot state (line index, semantic index, graph) hover and
// navigation read from.
package documents

import (
	"sync"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/graph"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/errors"
	"github.com/GodSpeedAI/domainforge-lsp/src/parser"
	"github.com/GodSpeedAI/domainforge-lsp/src/server/index"
)

// Snapshot is one immutable view of an open document. All derived state
// is rebuilt wholesale on every change, so a snapshot handed to a
// request never mutates underneath it.
type Snapshot struct {
	URI       protocol.DocumentURI
	Text      string
	Version   int32
	LineIndex *index.LineIndex
	Index     *index.SemanticIndex
	Graph     *graph.Graph
	ParseErr  error
}

// Manager owns the open-document table. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	snapshots map[protocol.DocumentURI]*Snapshot
}

func NewManager() *Manager {
	return &Manager{
		snapshots: make(map[protocol.DocumentURI]*Snapshot),
	}
}

// Open registers a document and builds its first snapshot.
func (m *Manager) Open(uri protocol.DocumentURI, text string, version int32) *Snapshot {
	snap := buildSnapshot(uri, text, version)
	m.mu.Lock()
	m.snapshots[uri] = snap
	m.mu.Unlock()
	common.LSPLogger.Debug("opened document %s (version %d)", uri, version)
	return snap
}

// Update replaces the document text and rebuilds the snapshot. A version
// older than the stored one is ignored and the current snapshot is
// returned unchanged.
func (m *Manager) Update(uri protocol.DocumentURI, text string, version int32) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.snapshots[uri]; ok && version < existing.Version {
		common.LSPLogger.Debug("ignoring stale update for %s (version %d < %d)", uri, version, existing.Version)
		return existing
	}
	snap := buildSnapshot(uri, text, version)
	m.snapshots[uri] = snap
	return snap
}

// Close forgets the document. Closing an unopened document is a no-op.
func (m *Manager) Close(uri protocol.DocumentURI) {
	m.mu.Lock()
	delete(m.snapshots, uri)
	m.mu.Unlock()
	common.LSPLogger.Debug("closed document %s", uri)
}

// Get returns the current snapshot for uri.
func (m *Manager) Get(uri protocol.DocumentURI) (*Snapshot, error) {
	m.mu.RLock()
	snap, ok := m.snapshots[uri]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewDocumentNotFoundError(string(uri))
	}
	return snap, nil
}

// URIs returns the open document URIs in unspecified order.
func (m *Manager) URIs() []protocol.DocumentURI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uris := make([]protocol.DocumentURI, 0, len(m.snapshots))
	for uri := range m.snapshots {
		uris = append(uris, uri)
	}
	return uris
}

// buildSnapshot parses once and derives both the semantic index and the
// graph from the same tree. A parse failure keeps the raw text and line
// index usable; the index is empty and the graph is absent, so requests
// degrade to no-graph answers instead of failing.
func buildSnapshot(uri protocol.DocumentURI, text string, version int32) *Snapshot {
	snap := &Snapshot{
		URI:       uri,
		Text:      text,
		Version:   version,
		LineIndex: index.NewLineIndex(text),
	}
	program, err := parser.Parse(text)
	if err != nil {
		common.LSPLogger.Debug("parse failed for %s: %v", uri, err)
		snap.Index = index.BuildSemanticIndexFromTree(nil, text)
		snap.ParseErr = err
		return snap
	}
	snap.Index = index.BuildSemanticIndexFromTree(program, text)
	snap.Graph = graph.Build(program, text)
	return snap
}
