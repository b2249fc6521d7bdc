package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `@namespace "logistics"
@version "1.0.0"

import * as inventory from "inventory.sea"

Entity "Warehouse" in logistics
Entity "Factory" version "2.0" replaces "OldFactory" changes "ownership", "location"
Resource "Cameras" units
Pattern "HubAndSpoke"
Role "Operator" for "Warehouse"
Relation "supplies" "Operator" "supplies" "Operator" via "Cameras"
Flow "Cameras" from "Warehouse" to "Factory" quantity 10
Instance vendor_123 of "Warehouse" {
  name: "Acme"
}
Policy all_named per Constraint Obligation priority 5 as:
    true
`

func TestParseSampleSource(t *testing.T) {
	program, err := Parse(sampleSource)
	require.NoError(t, err)
	require.NotNil(t, program)
	assert.Equal(t, NodeProgram, program.Kind)

	counts := map[NodeKind]int{}
	for _, stmt := range program.Children {
		counts[stmt.Kind]++
	}
	assert.Equal(t, 1, counts[NodeNamespaceDirective])
	assert.Equal(t, 1, counts[NodeVersionDirective])
	assert.Equal(t, 1, counts[NodeImportDecl])
	assert.Equal(t, 2, counts[NodeEntityDecl])
	assert.Equal(t, 1, counts[NodeResourceDecl])
	assert.Equal(t, 1, counts[NodePatternDecl])
	assert.Equal(t, 1, counts[NodeRoleDecl])
	assert.Equal(t, 1, counts[NodeRelationDecl])
	assert.Equal(t, 1, counts[NodeFlowDecl])
	assert.Equal(t, 1, counts[NodeInstanceDecl])
	assert.Equal(t, 1, counts[NodePolicyDecl])
}

func TestParseEntityClauses(t *testing.T) {
	program, err := Parse(`Entity "Factory" version "2.0" replaces "OldFactory" changes "ownership", "location"`)
	require.NoError(t, err)
	require.Len(t, program.Children, 1)

	entity := program.Children[0]
	require.Equal(t, NodeEntityDecl, entity.Kind)

	name := entity.FindChild(NodeName)
	require.NotNil(t, name)
	lit := name.FindChild(NodeStringLit)
	require.NotNil(t, lit)
	assert.Equal(t, "Factory", Unquote(lit.Text))

	version := entity.FindChild(NodeVersionClause)
	require.NotNil(t, version)
	assert.Equal(t, "2.0", Unquote(version.FindChild(NodeStringLit).Text))

	replaces := entity.FindChild(NodeReplacesClause)
	require.NotNil(t, replaces)
	assert.Equal(t, "OldFactory", Unquote(replaces.FindChild(NodeStringLit).Text))

	changes := entity.FindChild(NodeChangesClause)
	require.NotNil(t, changes)
	require.Len(t, changes.Children, 2)
	assert.Equal(t, "ownership", Unquote(changes.Children[0].Text))
	assert.Equal(t, "location", Unquote(changes.Children[1].Text))
}

func TestParseDeclarationSpansCoverNames(t *testing.T) {
	program, err := Parse(sampleSource)
	require.NoError(t, err)

	for _, stmt := range program.Children {
		name := stmt.FindChild(NodeName)
		if name == nil {
			continue
		}
		assert.LessOrEqual(t, stmt.Span.Start, name.Span.Start,
			"statement span must start before its name (%s)", stmt.Kind)
		assert.GreaterOrEqual(t, stmt.Span.End, name.Span.End,
			"statement span must cover its name (%s)", stmt.Kind)
	}
}

func TestParseFlowOperands(t *testing.T) {
	program, err := Parse(`Flow "Cameras" from "Warehouse" to "Factory" quantity 10`)
	require.NoError(t, err)
	require.Len(t, program.Children, 1)

	flow := program.Children[0]
	require.Equal(t, NodeFlowDecl, flow.Kind)

	lits := flow.ChildrenOfKind(NodeStringLit)
	require.Len(t, lits, 3)
	assert.Equal(t, "Cameras", Unquote(lits[0].Text))
	assert.Equal(t, "Warehouse", Unquote(lits[1].Text))
	assert.Equal(t, "Factory", Unquote(lits[2].Text))

	qty := flow.FindChild(NodeNumber)
	require.NotNil(t, qty)
	assert.Equal(t, "10", qty.Text)
}

func TestParseInstanceBodyAndRefs(t *testing.T) {
	program, err := Parse(`Instance vendor_123 of "Warehouse" {
  name: "Acme"
  parent: @hub_1
}`)
	require.NoError(t, err)
	require.Len(t, program.Children, 1)

	inst := program.Children[0]
	require.Equal(t, NodeInstanceDecl, inst.Kind)
	assert.Equal(t, "vendor_123", inst.FindChild(NodeIdentifier).Text)
	assert.Equal(t, "Warehouse", Unquote(inst.FindChild(NodeStringLit).Text))

	body := inst.FindChild(NodeInstanceBody)
	require.NotNil(t, body)
	fields := body.ChildrenOfKind(NodeInstanceField)
	require.Len(t, fields, 2)
	require.Len(t, fields[1].Children, 2)
	assert.Equal(t, NodeInstanceRef, fields[1].Children[1].Kind)
}

func TestParsePolicyMetadataAndExpression(t *testing.T) {
	source := `Policy all_named per Constraint Obligation priority 5 as:
    entity.name != ""`
	program, err := Parse(source)
	require.NoError(t, err)
	require.Len(t, program.Children, 1)

	policy := program.Children[0]
	require.Equal(t, NodePolicyDecl, policy.Kind)
	assert.Equal(t, "all_named", policy.FindChild(NodeIdentifier).Text)

	meta := policy.FindChild(NodePolicyMeta)
	require.NotNil(t, meta)
	idents := meta.ChildrenOfKind(NodeIdentifier)
	require.Len(t, idents, 2)
	assert.Equal(t, "Constraint", idents[0].Text)
	assert.Equal(t, "Obligation", idents[1].Text)
	require.NotNil(t, meta.FindChild(NodeNumber))
	assert.Equal(t, "5", meta.FindChild(NodeNumber).Text)

	expr := policy.FindChild(NodePolicyExpr)
	require.NotNil(t, expr)
	assert.Contains(t, source[expr.Span.Start:expr.Span.End], `entity.name`)
}

func TestParseImports(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		wildcard bool
	}{
		{
			name:     "wildcard import",
			source:   `import * as logistics from "logistics.sea"`,
			wildcard: true,
		},
		{
			name:     "item import with alias",
			source:   `import Warehouse, Factory as Plant from "core.sea"`,
			wildcard: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := Parse(tt.source)
			require.NoError(t, err)
			require.Len(t, program.Children, 1)
			imp := program.Children[0]
			require.Equal(t, NodeImportDecl, imp.Kind)
			if tt.wildcard {
				assert.NotNil(t, imp.FindChild(NodeImportWildcard))
			} else {
				assert.Len(t, imp.ChildrenOfKind(NodeImportItem), 2)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "entity without name", source: `Entity`},
		{name: "flow missing operands", source: `Flow "Cameras" from "Warehouse"`},
		{name: "unterminated string", source: `Entity "Warehouse`},
		{name: "policy without expression separator", source: `Policy broken`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			assert.Error(t, err)
		})
	}
}

func TestParseCaseInsensitiveKeywords(t *testing.T) {
	program, err := Parse(`entity "Warehouse"` + "\n" + `RESOURCE "Cameras" units`)
	require.NoError(t, err)
	require.Len(t, program.Children, 2)
	assert.Equal(t, NodeEntityDecl, program.Children[0].Kind)
	assert.Equal(t, NodeResourceDecl, program.Children[1].Kind)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`"with \"quotes\""`, `with "quotes"`},
		{`"line\nbreak"`, "line\nbreak"},
		{`"""multi"""`, "multi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Unquote(tt.raw))
	}
}
