package index

import (
	"fmt"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/GodSpeedAI/domainforge-lsp/src/parser"
)

// SymbolKind is the closed set of symbol kinds the index tracks.
type SymbolKind int

const (
	SymbolEntity SymbolKind = iota
	SymbolResource
	SymbolFlow
	SymbolPattern
	SymbolRole
	SymbolRelation
	SymbolInstance
	SymbolPolicy
)

var symbolKindLabels = map[SymbolKind]string{
	SymbolEntity:   "Entity",
	SymbolResource: "Resource",
	SymbolFlow:     "Flow",
	SymbolPattern:  "Pattern",
	SymbolRole:     "Role",
	SymbolRelation: "Relation",
	SymbolInstance: "Instance",
	SymbolPolicy:   "Policy",
}

// Label returns the human-facing kind name.
func (k SymbolKind) Label() string {
	if s, ok := symbolKindLabels[k]; ok {
		return s
	}
	return "Unknown"
}

// ByteRange is a half-open byte range into one document snapshot.
// Ranges are snapshot-relative and invalidated by any edit.
type ByteRange struct {
	Start int
	End   int
}

// Contains reports whether offset falls inside the range.
func (r ByteRange) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

func (r ByteRange) span() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Occurrence is one mention of a named symbol in source, tagged as
// definition or reference.
type Occurrence struct {
	Kind         SymbolKind
	Name         string
	Range        ByteRange
	IsDefinition bool
}

// FlowDecl is the denormalized view of one flow statement's operands,
// independent of whether those operands resolve in the graph.
type FlowDecl struct {
	Range      ByteRange
	Resource   string
	FromEntity string
	ToEntity   string
	Quantity   string // empty when the statement has no quantity
}

type symbolKey struct {
	kind SymbolKind
	name string
}

// SemanticIndex is the per-document structural index of occurrences,
// definitions, references, import prefixes, and flow declarations. It is
// rebuilt wholesale on every document change and never mutated
// incrementally.
type SemanticIndex struct {
	Occurrences    []Occurrence
	ImportPrefixes []string
	Flows          []FlowDecl

	definitions map[symbolKey]ByteRange
	references  map[symbolKey][]ByteRange
}

// BuildSemanticIndex parses source and walks the tree once. A document
// that fails to parse yields an empty index: every downstream query
// degrades to "nothing found".
func BuildSemanticIndex(source string) *SemanticIndex {
	idx := newSemanticIndex()
	program, err := parser.Parse(source)
	if err != nil {
		return idx
	}
	return BuildSemanticIndexFromTree(program, source)
}

// BuildSemanticIndexFromTree walks an already-parsed tree.
func BuildSemanticIndexFromTree(program *parser.Node, source string) *SemanticIndex {
	idx := newSemanticIndex()
	if program != nil {
		idx.walk(program, source)
	}
	sort.Strings(idx.ImportPrefixes)
	idx.ImportPrefixes = dedupStrings(idx.ImportPrefixes)
	sort.Slice(idx.Flows, func(i, j int) bool {
		if idx.Flows[i].Range.Start != idx.Flows[j].Range.Start {
			return idx.Flows[i].Range.Start < idx.Flows[j].Range.Start
		}
		return idx.Flows[i].Range.End < idx.Flows[j].Range.End
	})
	return idx
}

func newSemanticIndex() *SemanticIndex {
	return &SemanticIndex{
		definitions: make(map[symbolKey]ByteRange),
		references:  make(map[symbolKey][]ByteRange),
	}
}

func dedupStrings(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || in[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// SymbolAtOffset selects, among all occurrences containing the offset,
// the one with the smallest span: nested ranges resolve to the most
// specific token.
func (idx *SemanticIndex) SymbolAtOffset(offset int) *Occurrence {
	var best *Occurrence
	for i := range idx.Occurrences {
		occ := &idx.Occurrences[i]
		if !occ.Range.Contains(offset) {
			continue
		}
		if best == nil || occ.Range.span() < best.Range.span() {
			best = occ
		}
	}
	return best
}

// DefinitionRange looks up the recorded definition for (kind, name).
// Instances referenced as @name retry without the sigil.
func (idx *SemanticIndex) DefinitionRange(kind SymbolKind, name string) (ByteRange, bool) {
	if r, ok := idx.definitions[symbolKey{kind, name}]; ok {
		return r, true
	}
	if kind == SymbolInstance {
		if r, ok := idx.definitions[symbolKey{kind, strings.TrimPrefix(name, "@")}]; ok {
			return r, true
		}
	}
	return ByteRange{}, false
}

// ReferenceRanges returns every recorded reference for (kind, name).
func (idx *SemanticIndex) ReferenceRanges(kind SymbolKind, name string) []ByteRange {
	return idx.references[symbolKey{kind, name}]
}

// FlowDeclForRange returns the flow declaration with exactly this range.
func (idx *SemanticIndex) FlowDeclForRange(r ByteRange) *FlowDecl {
	for i := range idx.Flows {
		if idx.Flows[i].Range == r {
			return &idx.Flows[i]
		}
	}
	return nil
}

// Location converts a byte range into an LSP location for the URI.
func Location(uri protocol.DocumentURI, li *LineIndex, r ByteRange) protocol.Location {
	return protocol.Location{
		URI: uri,
		Range: protocol.Range{
			Start: li.PositionOf(r.Start),
			End:   li.PositionOf(r.End),
		},
	}
}

// walk is the single recursive descent over the parse tree. Node kinds
// without a dedicated branch are walked transparently.
func (idx *SemanticIndex) walk(n *parser.Node, source string) {
	switch n.Kind {
	case parser.NodeImportDecl:
		idx.indexImportDecl(n)
	case parser.NodeEntityDecl:
		idx.recordDeclName(SymbolEntity, n)
	case parser.NodeResourceDecl:
		idx.recordDeclName(SymbolResource, n)
	case parser.NodeFlowDecl:
		idx.indexFlowDecl(n)
	case parser.NodePatternDecl:
		idx.recordDeclName(SymbolPattern, n)
	case parser.NodeRoleDecl:
		idx.recordDeclName(SymbolRole, n)
	case parser.NodeRelationDecl:
		idx.indexRelationDecl(n)
	case parser.NodeInstanceDecl:
		idx.indexInstanceDecl(n)
	case parser.NodeInstanceRef:
		idx.record(SymbolInstance, strings.TrimPrefix(n.Text, "@"), spanToRange(n.Span), false)
	case parser.NodePolicyDecl:
		idx.indexPolicyDecl(n, source)
	default:
		for _, c := range n.Children {
			idx.walk(c, source)
		}
	}
}

func spanToRange(s parser.Span) ByteRange {
	return ByteRange{Start: s.Start, End: s.End}
}

func (idx *SemanticIndex) indexImportDecl(n *parser.Node) {
	// imports contribute to the prefix set only, never to
	// definitions or references
	for _, c := range n.Children {
		switch c.Kind {
		case parser.NodeImportItem:
			idents := c.ChildrenOfKind(parser.NodeIdentifier)
			if len(idents) == 0 {
				continue
			}
			// alias wins over the base name when present
			idx.ImportPrefixes = append(idx.ImportPrefixes, idents[len(idents)-1].Text)
		case parser.NodeImportWildcard:
			if alias := c.FindChild(parser.NodeIdentifier); alias != nil {
				idx.ImportPrefixes = append(idx.ImportPrefixes, alias.Text)
			}
		}
	}
}

// recordDeclName records the single definition occurrence contributed by
// declarations whose name is a quoted literal.
func (idx *SemanticIndex) recordDeclName(kind SymbolKind, n *parser.Node) {
	nameNode := n.FindChild(parser.NodeName)
	if nameNode == nil {
		return
	}
	for _, lit := range nameNode.Children {
		switch lit.Kind {
		case parser.NodeStringLit, parser.NodeMultilineString:
			idx.record(kind, parser.Unquote(lit.Text), spanToRange(lit.Span), true)
			return
		}
	}
}

func (idx *SemanticIndex) recordLiteral(kind SymbolKind, lit *parser.Node, isDefinition bool) {
	idx.record(kind, parser.Unquote(lit.Text), spanToRange(lit.Span), isDefinition)
}

func (idx *SemanticIndex) indexRelationDecl(n *parser.Node) {
	idx.recordDeclName(SymbolRelation, n)

	// operand literals in order: subject role, predicate, object role,
	// optional via-flow resource
	lits := n.ChildrenOfKind(parser.NodeStringLit)
	if len(lits) > 0 {
		idx.recordLiteral(SymbolRole, lits[0], false)
	}
	if len(lits) > 2 {
		idx.recordLiteral(SymbolRole, lits[2], false)
	}
	if len(lits) > 3 {
		idx.recordLiteral(SymbolResource, lits[3], false)
	}
}

func (idx *SemanticIndex) indexFlowDecl(n *parser.Node) {
	declRange := spanToRange(n.Span)
	lits := n.ChildrenOfKind(parser.NodeStringLit)

	if len(lits) > 0 {
		idx.recordLiteral(SymbolResource, lits[0], false)
	}
	if len(lits) > 1 {
		idx.recordLiteral(SymbolEntity, lits[1], false)
	}
	if len(lits) > 2 {
		idx.recordLiteral(SymbolEntity, lits[2], false)
	}

	decl := FlowDecl{
		Range:      declRange,
		Resource:   operandOrUnknown(lits, 0),
		FromEntity: operandOrUnknown(lits, 1),
		ToEntity:   operandOrUnknown(lits, 2),
	}
	if qty := n.FindChild(parser.NodeNumber); qty != nil {
		decl.Quantity = qty.Text
	}
	idx.Flows = append(idx.Flows, decl)

	// a coarse Flow occurrence makes hovering the flow keyword work;
	// flows are unnamed, so the name is synthesized from the range
	idx.record(SymbolFlow, FlowName(declRange), declRange, true)
}

func operandOrUnknown(lits []*parser.Node, i int) string {
	if i < len(lits) {
		return parser.Unquote(lits[i].Text)
	}
	return "<unknown>"
}

// FlowName synthesizes the occurrence name for an unnamed flow statement.
func FlowName(r ByteRange) string {
	return fmt.Sprintf("flow@%d..%d", r.Start, r.End)
}

func (idx *SemanticIndex) indexInstanceDecl(n *parser.Node) {
	if ident := n.FindChild(parser.NodeIdentifier); ident != nil {
		idx.record(SymbolInstance, ident.Text, spanToRange(ident.Span), true)
	}
	if typeLit := n.FindChild(parser.NodeStringLit); typeLit != nil {
		idx.recordLiteral(SymbolEntity, typeLit, false)
	}
	// instance field values may hold @references
	if body := n.FindChild(parser.NodeInstanceBody); body != nil {
		for _, field := range body.Children {
			for _, c := range field.Children {
				if c.Kind == parser.NodeInstanceRef {
					idx.record(SymbolInstance, strings.TrimPrefix(c.Text, "@"), spanToRange(c.Span), false)
				}
			}
		}
	}
}

func (idx *SemanticIndex) indexPolicyDecl(n *parser.Node, source string) {
	foundName := false
	for _, c := range n.Children {
		if !foundName && c.Kind == parser.NodeIdentifier {
			// the first bare identifier is the policy name
			idx.record(SymbolPolicy, c.Text, spanToRange(c.Span), true)
			foundName = true
			continue
		}
		// remaining children are walked so instance references inside
		// the expression are still captured
		idx.walk(c, source)
	}
}

func (idx *SemanticIndex) record(kind SymbolKind, name string, r ByteRange, isDefinition bool) {
	idx.Occurrences = append(idx.Occurrences, Occurrence{
		Kind:         kind,
		Name:         name,
		Range:        r,
		IsDefinition: isDefinition,
	})
	key := symbolKey{kind, name}
	if isDefinition {
		// duplicate definitions silently overwrite: last write wins
		idx.definitions[key] = r
	} else {
		idx.references[key] = append(idx.references[key], r)
	}
}
