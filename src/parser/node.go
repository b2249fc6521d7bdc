package parser

// NodeKind enumerates the structural node kinds of a parsed document.
// The set is closed: consumers dispatch exhaustively on it.
type NodeKind int

const (
	NodeProgram NodeKind = iota
	NodeNamespaceDirective
	NodeVersionDirective
	NodeImportDecl
	NodeImportItem
	NodeImportWildcard
	NodeEntityDecl
	NodeResourceDecl
	NodeFlowDecl
	NodePatternDecl
	NodeRoleDecl
	NodeRelationDecl
	NodeInstanceDecl
	NodeInstanceRef
	NodePolicyDecl
	NodePolicyMeta
	NodePolicyExpr
	NodeInstanceBody
	NodeInstanceField
	NodeNamespaceClause
	NodeVersionClause
	NodeReplacesClause
	NodeChangesClause
	NodeForClause
	NodeName
	NodeStringLit
	NodeMultilineString
	NodeIdentifier
	NodeNumber
	NodeOperator
)

var nodeKindNames = map[NodeKind]string{
	NodeProgram:            "program",
	NodeNamespaceDirective: "namespace_directive",
	NodeVersionDirective:   "version_directive",
	NodeImportDecl:         "import_decl",
	NodeImportItem:         "import_item",
	NodeImportWildcard:     "import_wildcard",
	NodeEntityDecl:         "entity_decl",
	NodeResourceDecl:       "resource_decl",
	NodeFlowDecl:           "flow_decl",
	NodePatternDecl:        "pattern_decl",
	NodeRoleDecl:           "role_decl",
	NodeRelationDecl:       "relation_decl",
	NodeInstanceDecl:       "instance_decl",
	NodeInstanceRef:        "instance_reference",
	NodePolicyDecl:         "policy_decl",
	NodePolicyMeta:         "policy_meta",
	NodePolicyExpr:         "policy_expr",
	NodeInstanceBody:       "instance_body",
	NodeInstanceField:      "instance_field",
	NodeNamespaceClause:    "namespace_clause",
	NodeVersionClause:      "version_clause",
	NodeReplacesClause:     "replaces_clause",
	NodeChangesClause:      "changes_clause",
	NodeForClause:          "for_clause",
	NodeName:               "name",
	NodeStringLit:          "string_literal",
	NodeMultilineString:    "multiline_string",
	NodeIdentifier:         "identifier",
	NodeNumber:             "number",
	NodeOperator:           "operator",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Span is a half-open byte range into the parsed source.
type Span struct {
	Start int
	End   int
}

// Node is one vertex of the structural parse tree. Text holds the raw
// source slice for token nodes and is empty for composites.
type Node struct {
	Kind     NodeKind
	Span     Span
	Text     string
	Children []*Node
}

// FindChild returns the first direct child of the given kind, or nil.
func (n *Node) FindChild(kind NodeKind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns all direct children of the given kind, in order.
func (n *Node) ChildrenOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
