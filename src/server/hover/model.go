// Package hover builds the deterministic, size-bounded hover payloads:
// symbol resolution against the semantic graph, model assembly with the
// JSON truncation ladder, and the markdown projection.
package hover

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// Schema and budget constants. The budgets are hard caps enforced by the
// truncation ladders, not hints.
const (
	SchemaVersion    = "1.0"
	MaxMarkdownBytes = 32 * 1024
	MaxJSONBytes     = 128 * 1024
	MaxFlowScan      = 2000

	maxRelatedSymbols  = 5
	maxSummaryHardCut  = 512
	policyExprPreview  = 80
	markdownTrailerPad = 64
)

// Resolution confidence values.
const (
	ConfidenceExact         = "exact"
	ConfidenceAmbiguous     = "ambiguous"
	ConfidenceErrorFallback = "error_fallback"
	ConfidenceNoGraph       = "no-graph"
)

// DetailLevel gates how much derived relationship data is computed.
type DetailLevel int

const (
	DetailCore DetailLevel = iota
	DetailStandard
	DetailDeep
)

func (d DetailLevel) String() string {
	switch d {
	case DetailCore:
		return "core"
	case DetailDeep:
		return "deep"
	default:
		return "standard"
	}
}

// ParseDetailLevel maps a request string to a DetailLevel. Unknown or
// empty values default to standard.
func ParseDetailLevel(s string) DetailLevel {
	switch s {
	case "core":
		return DetailCore
	case "deep":
		return DetailDeep
	default:
		return DetailStandard
	}
}

// Fact is one ordered (key, value) pair. It serializes as a two-element
// array so fact order survives the JSON round trip.
type Fact struct {
	Key   string
	Value string
}

// MarshalJSON encodes the fact as ["key", "value"].
func (f Fact) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Key, f.Value})
}

// UnmarshalJSON decodes a ["key", "value"] pair.
func (f *Fact) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("fact must be a [key, value] pair: %w", err)
	}
	f.Key, f.Value = pair[0], pair[1]
	return nil
}

// Position mirrors an LSP position inside the serialized model.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// PositionFrom converts an LSP position.
func PositionFrom(p protocol.Position) Position {
	return Position{Line: p.Line, Character: p.Character}
}

// Range is a start/end position pair inside the serialized model.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Symbol identifies the resolved symbol.
type Symbol struct {
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	QualifiedName        string `json:"qualified_name"`
	URI                  string `json:"uri"`
	Range                Range  `json:"range"`
	ResolveID            string `json:"resolve_id"`
	ResolutionConfidence string `json:"resolution_confidence"`
}

// ScopeSummary describes the namespaces visible at the request position.
type ScopeSummary struct {
	Module            *string  `json:"module"`
	EnclosingRule     *string  `json:"enclosing_rule"`
	NamespacesInScope []string `json:"namespaces_in_scope"`
}

// Context records the request parameters the model was built against.
type Context struct {
	DocumentVersion int32        `json:"document_version"`
	Position        Position     `json:"position"`
	ScopeSummary    ScopeSummary `json:"scope_summary"`
	ConfigHash      string       `json:"config_hash"`
}

// Header is the display identity of the primary content.
type Header struct {
	DisplayName   string `json:"display_name"`
	KindLabel     string `json:"kind_label"`
	QualifiedPath string `json:"qualified_path"`
}

// Primary is the main hover content block.
type Primary struct {
	Header           Header   `json:"header"`
	SignatureOrShape string   `json:"signature_or_shape"`
	Summary          string   `json:"summary"`
	Badges           []string `json:"badges"`
	Facts            []Fact   `json:"facts"`
}

// Related is one ranked related symbol.
type Related struct {
	QualifiedName  string `json:"qualified_name"`
	Kind           string `json:"kind"`
	RelevanceScore int    `json:"relevance_score"`
}

// Limits records the size budgets and any truncations applied.
type Limits struct {
	MaxMarkdownBytes  int      `json:"max_markdown_bytes"`
	MaxJSONBytes      int      `json:"max_json_bytes"`
	TruncatedSections []string `json:"truncated_sections"`
}

// Model is the schema-versioned, JSON-serializable hover payload.
// Serialized size never exceeds Limits.MaxJSONBytes after the builder's
// limit enforcement.
type Model struct {
	SchemaVersion string    `json:"schema_version"`
	ID            string    `json:"id"`
	Symbol        Symbol    `json:"symbol"`
	Context       Context   `json:"context"`
	Primary       Primary   `json:"primary"`
	Related       []Related `json:"related"`
	Limits        Limits    `json:"limits"`
}
