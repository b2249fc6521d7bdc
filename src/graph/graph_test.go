package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodSpeedAI/domainforge-lsp/src/parser"
)

func buildGraph(t *testing.T, source string) *Graph {
	t.Helper()
	program, err := parser.Parse(source)
	require.NoError(t, err)
	return Build(program, source)
}

func TestBuildStableIDs(t *testing.T) {
	source := `@namespace "logistics"
Entity "Warehouse"
Resource "Cameras" units
Pattern "HubAndSpoke"
`
	g := buildGraph(t, source)

	require.Len(t, g.AllEntities(), 1)
	assert.Equal(t, "entity:logistics:Warehouse", g.AllEntities()[0].ID())
	assert.Equal(t, "logistics", g.AllEntities()[0].Namespace())

	require.Len(t, g.AllResources(), 1)
	assert.Equal(t, "resource:logistics:Cameras", g.AllResources()[0].ID())
	assert.Equal(t, "units", g.AllResources()[0].Unit())

	require.Len(t, g.AllPatterns(), 1)
	assert.Equal(t, "pattern:logistics:HubAndSpoke", g.AllPatterns()[0].ID())
}

func TestBuildIsDeterministic(t *testing.T) {
	source := `Entity "B"
Entity "A"
Resource "R" units
Flow "R" from "B" to "A"
`
	g1 := buildGraph(t, source)
	g2 := buildGraph(t, source)

	require.Equal(t, len(g1.AllEntities()), len(g2.AllEntities()))
	for i := range g1.AllEntities() {
		assert.Equal(t, g1.AllEntities()[i].ID(), g2.AllEntities()[i].ID())
	}
	// entities come back sorted by stable id, not declaration order
	assert.Equal(t, "entity:default:A", g1.AllEntities()[0].ID())
	assert.Equal(t, "entity:default:B", g1.AllEntities()[1].ID())
}

func TestEntityClauseMetadata(t *testing.T) {
	source := `Entity "Factory" in plants version "2.0" replaces "OldFactory" changes "ownership", "location"`
	g := buildGraph(t, source)

	require.Len(t, g.AllEntities(), 1)
	e := g.AllEntities()[0]
	assert.Equal(t, "plants", e.Namespace())
	assert.Equal(t, "2.0", e.Version())
	assert.Equal(t, "OldFactory", e.Replaces())
	assert.Equal(t, []string{"ownership", "location"}, e.Changes())
}

func TestFlowResolution(t *testing.T) {
	source := `Entity "Warehouse"
Entity "Factory"
Resource "Cameras" units
Flow "Cameras" from "Warehouse" to "Factory" quantity 10
Flow "Cameras" from "Warehouse" to "Nowhere"
`
	g := buildGraph(t, source)

	// the second flow names an unknown entity and is dropped
	require.Len(t, g.AllFlows(), 1)
	f := g.AllFlows()[0]
	assert.Equal(t, "flow:default:0", f.ID())
	assert.Equal(t, "resource:default:Cameras", f.ResourceID())
	assert.Equal(t, "entity:default:Warehouse", f.FromID())
	assert.Equal(t, "entity:default:Factory", f.ToID())
	assert.Equal(t, "10", f.Quantity())

	warehouse := g.GetEntity("entity:default:Warehouse")
	require.NotNil(t, warehouse)
	assert.Len(t, g.FlowsFrom(warehouse.ID()), 1)
	assert.Empty(t, g.FlowsTo(warehouse.ID()))
	assert.Len(t, g.FlowsTo("entity:default:Factory"), 1)
}

func TestFlowsResolveForwardDeclarations(t *testing.T) {
	source := `Flow "Cameras" from "Warehouse" to "Factory"
Entity "Warehouse"
Entity "Factory"
Resource "Cameras" units
`
	g := buildGraph(t, source)
	require.Len(t, g.AllFlows(), 1)
}

func TestPolicyMetadata(t *testing.T) {
	source := `Policy all_named per Constraint Obligation priority 5 as:
    true`
	g := buildGraph(t, source)

	require.Len(t, g.AllPolicies(), 1)
	p := g.AllPolicies()[0]
	assert.Equal(t, "policy:default:all_named", p.ID)
	assert.Equal(t, "Constraint", p.Kind)
	assert.Equal(t, "Obligation", p.Modality)
	assert.Equal(t, 5, p.Priority)
	assert.Equal(t, "true", p.Expression)
}

func TestInstanceFields(t *testing.T) {
	source := `Entity "Warehouse"
Instance vendor_123 of "Warehouse" {
  name: "Acme"
  rating: 5
}
`
	g := buildGraph(t, source)

	inst := g.GetEntityInstance("vendor_123")
	require.NotNil(t, inst)
	assert.Equal(t, "Warehouse", inst.EntityType())
	assert.Equal(t, map[string]string{"name": "Acme", "rating": "5"}, inst.Fields())
	assert.Nil(t, g.GetEntityInstance("missing"))
}

func TestRoleNamesForEntity(t *testing.T) {
	source := `Entity "Warehouse"
Role "Operator" for "Warehouse"
Role "Auditor" for "Warehouse"
Role "Unrelated"
`
	g := buildGraph(t, source)

	names := g.RoleNamesForEntity("entity:default:Warehouse")
	assert.ElementsMatch(t, []string{"Operator", "Auditor"}, names)
	assert.Nil(t, g.RoleNamesForEntity("entity:default:Missing"))
}

func TestRelationOperands(t *testing.T) {
	source := `Relation "supplies" "Operator" "supplies to" "Customer" via "Cameras"`
	g := buildGraph(t, source)

	require.Len(t, g.AllRelations(), 1)
	r := g.AllRelations()[0]
	assert.Equal(t, "Operator", r.Subject())
	assert.Equal(t, "supplies to", r.Predicate())
	assert.Equal(t, "Customer", r.Object())
	assert.Equal(t, "Cameras", r.ViaResource())
}

func TestBuildNilProgram(t *testing.T) {
	g := Build(nil, "")
	assert.Empty(t, g.AllEntities())
	assert.Empty(t, g.AllFlows())
}
